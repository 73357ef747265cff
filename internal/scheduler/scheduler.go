package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"listing_ingest/internal/domain"
)

// Ingestor defines the interface for URL-driven ingestion.
type Ingestor interface {
	IngestFromURL(ctx context.Context, sourceID, url string, src domain.SourceConfig) (domain.BatchResult, error)
}

type StateStore interface {
	Record(ctx context.Context, state *domain.SweepState) error
}

// Scheduler periodically sweeps every URL of every configured source.
type Scheduler struct {
	ingestor Ingestor
	states   StateStore
	sources  map[string]domain.SourceConfig
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewScheduler(
	ingestor Ingestor,
	states StateStore,
	sources map[string]domain.SourceConfig,
	interval time.Duration,
	timeout time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		ingestor: ingestor,
		states:   states,
		sources:  sources,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "sources", len(s.sources))

	s.runSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	sweepCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		sweepCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if _, err := s.Sweep(sweepCtx); err != nil {
		s.logger.Error("sweep failed", "error", err)
	}
}

// Sweep ingests every configured URL once. A failing URL is counted and the
// sweep moves on; only cancellation stops it early.
func (s *Scheduler) Sweep(ctx context.Context) (*domain.SweepStats, error) {
	startTime := time.Now()

	ids := make([]string, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stats := &domain.SweepStats{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(startTime)
			return stats, err
		}

		src := s.sources[id]
		if len(src.URLs) == 0 {
			continue
		}
		stats.Sources++

		state := &domain.SweepState{SourceID: id}
		for _, url := range src.URLs {
			if ctx.Err() != nil {
				break
			}
			stats.URLs++

			batch, err := s.ingestor.IngestFromURL(ctx, id, url, src)
			state.LastNew += batch.NewListings
			state.LastUpdated += batch.UpdatedListings
			state.LastRejected += batch.RejectedListings
			state.LastErrors += len(batch.Errors)
			if err != nil && len(batch.Errors) == 0 {
				state.LastErrors++
			}
		}

		stats.New += state.LastNew
		stats.Updated += state.LastUpdated
		stats.Rejected += state.LastRejected
		stats.Errors += state.LastErrors

		s.recordState(ctx, state)
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("sweep completed",
		"sources", stats.Sources,
		"urls", stats.URLs,
		"new", stats.New,
		"updated", stats.Updated,
		"rejected", stats.Rejected,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, ctx.Err()
}

func (s *Scheduler) recordState(ctx context.Context, state *domain.SweepState) {
	if s.states == nil {
		return
	}
	state.LastSweptAt = s.now().UTC()
	if err := s.states.Record(ctx, state); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("failed to record sweep state", "source", state.SourceID, "error", err)
	}
}
