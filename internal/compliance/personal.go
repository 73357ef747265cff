package compliance

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/reasoning"
)

var (
	phoneRe = regexp.MustCompile(`(?:\+?91[\s-]?)?\b[6-9]\d{4}[\s-]?\d{5}\b`)
	emailRe = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)
)

type piiVerdict struct {
	PIIPresent bool     `json:"pii_present"`
	RiskScore  float64  `json:"risk_score"`
	Types      []string `json:"pii_types"`
}

func piiLevel(score float64) domain.RiskLevel {
	switch {
	case score > 70:
		return domain.RiskCritical
	case score > 40:
		return domain.RiskHigh
	case score > 20:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// PersonalDataCheck scores exposure of personal data in the listing's free text.
type PersonalDataCheck struct {
	reasoner reasoning.Provider
}

func NewPersonalDataCheck(reasoner reasoning.Provider) *PersonalDataCheck {
	return &PersonalDataCheck{reasoner: reasoner}
}

func (c *PersonalDataCheck) Kind() domain.CheckKind {
	return domain.CheckPersonal
}

func (c *PersonalDataCheck) Provider() string {
	return c.reasoner.Name()
}

func (c *PersonalDataCheck) Applicable(s Subject) bool {
	return freeText(s.Listing) != ""
}

func (c *PersonalDataCheck) Run(ctx context.Context, s Subject) (domain.ComplianceReport, error) {
	started := time.Now()
	text := freeText(s.Listing)

	payload, _ := json.Marshal(map[string]string{"text": text})
	prompt := `Assess whether the following vehicle listing text exposes personal data of a private
individual (phone numbers, e-mail addresses, home addresses, full names, ID numbers).
Return only JSON: {"pii_present": bool, "risk_score": number from 0 to 100, "pii_types": [string]}

LISTING:
` + string(payload)

	var v piiVerdict
	if err := ask(ctx, c.reasoner, domain.CheckPersonal, prompt, &v); err != nil {
		return domain.ComplianceReport{}, err
	}
	v.RiskScore = clampScore(v.RiskScore)

	findings := map[string]any{
		"pii_present": v.PIIPresent,
		"risk_score":  v.RiskScore,
	}
	if len(v.Types) > 0 {
		findings["pii_types"] = v.Types
	}
	if signals := localSignals(text); len(signals) > 0 {
		findings["local_signals"] = signals
		findings["pii_present"] = true
	}

	return newReport(domain.CheckPersonal, c.reasoner, piiLevel(v.RiskScore), findings, started), nil
}

func localSignals(text string) []string {
	var signals []string
	if phoneRe.MatchString(text) {
		signals = append(signals, "phone_number")
	}
	if emailRe.MatchString(text) {
		signals = append(signals, "email_address")
	}
	return signals
}

func freeText(l domain.CanonicalListing) string {
	parts := []string{l.Title}
	if l.Description != nil {
		parts = append(parts, *l.Description)
	}
	if l.SellerType != nil {
		parts = append(parts, *l.SellerType)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
