package compliance

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/reasoning"
)

var stockPhotoHosts = []string{
	"shutterstock.com",
	"gettyimages.com",
	"istockphoto.com",
	"alamy.com",
	"dreamstime.com",
	"123rf.com",
	"depositphotos.com",
	"adobestock.com",
	"stock.adobe.com",
}

type copyrightVerdict struct {
	RiskScore float64  `json:"risk_score"`
	Signals   []string `json:"signals"`
}

func copyrightLevel(score float64) domain.RiskLevel {
	switch {
	case score > 60:
		return domain.RiskHigh
	case score > 30:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// CopyrightCheck looks for stock photography, watermarks and brand artwork in
// the listing's images.
type CopyrightCheck struct {
	reasoner reasoning.Provider
}

func NewCopyrightCheck(reasoner reasoning.Provider) *CopyrightCheck {
	return &CopyrightCheck{reasoner: reasoner}
}

func (c *CopyrightCheck) Kind() domain.CheckKind {
	return domain.CheckCopyright
}

func (c *CopyrightCheck) Provider() string {
	return c.reasoner.Name()
}

func (c *CopyrightCheck) Applicable(s Subject) bool {
	return len(s.Listing.ImageURLs) > 0
}

func (c *CopyrightCheck) Run(ctx context.Context, s Subject) (domain.ComplianceReport, error) {
	started := time.Now()

	input := map[string]any{"image_urls": s.Listing.ImageURLs}
	if s.Listing.Description != nil {
		input["description"] = *s.Listing.Description
	}
	payload, _ := json.Marshal(input)

	prompt := `Assess the copyright exposure of republishing the images of this vehicle listing.
Look for stock-photo sources, watermarks, manufacturer press images and brand logos.
Return only JSON: {"risk_score": number from 0 to 100, "signals": [string]}

LISTING:
` + string(payload)

	var v copyrightVerdict
	if err := ask(ctx, c.reasoner, domain.CheckCopyright, prompt, &v); err != nil {
		return domain.ComplianceReport{}, err
	}
	v.RiskScore = clampScore(v.RiskScore)

	findings := map[string]any{"risk_score": v.RiskScore}
	if len(v.Signals) > 0 {
		findings["signals"] = v.Signals
	}
	if hosts := stockHosts(s.Listing.ImageURLs); len(hosts) > 0 {
		findings["stock_photo_hosts"] = hosts
	}

	return newReport(domain.CheckCopyright, c.reasoner, copyrightLevel(v.RiskScore), findings, started), nil
}

func stockHosts(images []string) []string {
	seen := map[string]bool{}
	var hosts []string
	for _, raw := range images {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		for _, stock := range stockPhotoHosts {
			if (host == stock || strings.HasSuffix(host, "."+stock)) && !seen[stock] {
				seen[stock] = true
				hosts = append(hosts, stock)
			}
		}
	}
	return hosts
}
