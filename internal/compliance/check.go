package compliance

import (
	"context"
	"fmt"
	"time"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/reasoning"
)

// Subject is what the checks look at.
type Subject struct {
	Listing domain.CanonicalListing
	Content string
	URL     string
}

type Check interface {
	Kind() domain.CheckKind
	Provider() string
	Applicable(s Subject) bool
	Run(ctx context.Context, s Subject) (domain.ComplianceReport, error)
}

func newReport(kind domain.CheckKind, p reasoning.Provider, level domain.RiskLevel, findings map[string]any, started time.Time) domain.ComplianceReport {
	return domain.ComplianceReport{
		Kind:          kind,
		Provider:      p.Name(),
		RiskLevel:     level,
		Flagged:       level.Blocking(),
		Findings:      findings,
		Latency:       time.Since(started),
		EstimatedCost: p.CostPerCall(),
	}
}

func ask(ctx context.Context, p reasoning.Provider, kind domain.CheckKind, prompt string, out any) error {
	if err := reasoning.CompleteJSON(ctx, p, prompt, out); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrComplianceCheckFailure, kind, err)
	}
	return nil
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
