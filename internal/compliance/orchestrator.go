package compliance

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"listing_ingest/internal/domain"
)

type Assessment struct {
	Reports       []domain.ComplianceReport
	Failures      []domain.CheckFailure
	RiskScore     float64
	Status        domain.ListingStatus
	EstimatedCost float64
}

// Orchestrator runs every applicable check concurrently and folds their
// reports into one classification. A failing check is recorded, never fatal.
type Orchestrator struct {
	checks []Check
	logger *slog.Logger
}

func NewOrchestrator(logger *slog.Logger, checks ...Check) *Orchestrator {
	return &Orchestrator{
		checks: checks,
		logger: logger.With("component", "compliance"),
	}
}

type checkOutcome struct {
	ran     bool
	report  domain.ComplianceReport
	failure *domain.CheckFailure
}

func (o *Orchestrator) Assess(ctx context.Context, s Subject) Assessment {
	outcomes := make([]checkOutcome, len(o.checks))

	var g errgroup.Group
	for i, check := range o.checks {
		if !check.Applicable(s) {
			continue
		}
		g.Go(func() error {
			started := time.Now()
			report, err := check.Run(ctx, s)
			if err != nil {
				o.logger.Warn("compliance check failed",
					"check", check.Kind(),
					"error", err,
				)
				outcomes[i] = checkOutcome{ran: true, failure: &domain.CheckFailure{
					Kind:     check.Kind(),
					Provider: check.Provider(),
					Error:    err.Error(),
					Latency:  time.Since(started),
				}}
				return nil
			}
			outcomes[i] = checkOutcome{ran: true, report: report}
			return nil
		})
	}
	_ = g.Wait()

	var a Assessment
	for _, out := range outcomes {
		switch {
		case !out.ran:
		case out.failure != nil:
			a.Failures = append(a.Failures, *out.failure)
		default:
			a.Reports = append(a.Reports, out.report)
			a.EstimatedCost += out.report.EstimatedCost
		}
	}

	a.RiskScore, a.Status = Aggregate(a.Reports)
	return a
}

// Aggregate averages the level weights of the reports. Any high or critical
// report flags the listing.
func Aggregate(reports []domain.ComplianceReport) (float64, domain.ListingStatus) {
	if len(reports) == 0 {
		return 0, domain.StatusPending
	}

	status := domain.StatusPending
	var total float64
	for _, r := range reports {
		total += r.RiskLevel.Weight()
		if r.RiskLevel.Blocking() {
			status = domain.StatusFlagged
		}
	}
	return total / float64(len(reports)), status
}
