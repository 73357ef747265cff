package compliance

import (
	"context"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/fetch"
	"listing_ingest/internal/reasoning"
	"listing_ingest/internal/resilience"
)

const termsContentChars = 6000

// RobotsChecker tells whether crawling a URL is permitted.
type RobotsChecker interface {
	RobotsAllowed(ctx context.Context, pageURL string) (bool, error)
}

type termsVerdict struct {
	AggregationAllowed  bool   `json:"aggregation_allowed"`
	CommercialUse       bool   `json:"commercial_use_allowed"`
	AttributionRequired bool   `json:"attribution_required"`
	Notes               string `json:"notes"`
}

func (v termsVerdict) level() domain.RiskLevel {
	switch {
	case !v.AggregationAllowed:
		return domain.RiskCritical
	case !v.CommercialUse:
		return domain.RiskHigh
	case v.AttributionRequired:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// TermsCheck classifies whether the source's terms permit aggregation and
// commercial reuse. Verdicts are cached per registrable domain.
type TermsCheck struct {
	reasoner reasoning.Provider
	robots   RobotsChecker
	verdicts *resilience.Cache[string, termsVerdict]
}

// NewTermsCheck creates the check. robots may be nil.
func NewTermsCheck(reasoner reasoning.Provider, robots RobotsChecker, verdictTTL time.Duration) *TermsCheck {
	return &TermsCheck{
		reasoner: reasoner,
		robots:   robots,
		verdicts: resilience.NewCache[string, termsVerdict](verdictTTL),
	}
}

func (c *TermsCheck) Kind() domain.CheckKind {
	return domain.CheckTerms
}

func (c *TermsCheck) Provider() string {
	return c.reasoner.Name()
}

func (c *TermsCheck) Applicable(s Subject) bool {
	return strings.TrimSpace(s.Content) != ""
}

func (c *TermsCheck) Run(ctx context.Context, s Subject) (domain.ComplianceReport, error) {
	started := time.Now()
	site := RegistrableDomain(s.URL)

	if site != "" {
		if v, ok := c.verdicts.Get(site); ok {
			report := newReport(domain.CheckTerms, c.reasoner, v.level(), verdictFindings(v, site), started)
			report.Findings["cached"] = true
			report.EstimatedCost = 0
			return report, nil
		}
	}

	text, err := fetch.Text(s.Content)
	if err != nil || text == "" {
		text = s.Content
	}

	prompt := `You review website terms for a listings aggregator. Based on the page content below,
decide whether listings from this site may be aggregated by a third party, whether commercial reuse is
permitted, and whether attribution is required. Return only JSON:
{"aggregation_allowed": bool, "commercial_use_allowed": bool, "attribution_required": bool, "notes": string}

PAGE CONTENT:
` + fetch.Truncate(text, termsContentChars)

	var v termsVerdict
	if err := ask(ctx, c.reasoner, domain.CheckTerms, prompt, &v); err != nil {
		return domain.ComplianceReport{}, err
	}

	findings := verdictFindings(v, site)
	if c.robots != nil && s.URL != "" {
		allowed, err := c.robots.RobotsAllowed(ctx, s.URL)
		switch {
		case err != nil:
			findings["robots_error"] = err.Error()
		case !allowed:
			v.AggregationAllowed = false
			findings["aggregation_allowed"] = false
			findings["robots_disallowed"] = true
		}
	}

	if site != "" {
		c.verdicts.Set(site, v)
	}
	return newReport(domain.CheckTerms, c.reasoner, v.level(), findings, started), nil
}

func verdictFindings(v termsVerdict, site string) map[string]any {
	findings := map[string]any{
		"aggregation_allowed":    v.AggregationAllowed,
		"commercial_use_allowed": v.CommercialUse,
		"attribution_required":   v.AttributionRequired,
	}
	if v.Notes != "" {
		findings["notes"] = v.Notes
	}
	if site != "" {
		findings["site"] = site
	}
	return findings
}

// RegistrableDomain returns the eTLD+1 of rawURL, e.g. "olx.in" for
// "https://www.olx.in/item/1". It returns "" when no domain can be derived.
func RegistrableDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
