package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/resilience"
)

type GuardConfig struct {
	RateLimit float64
	Burst     int
	Retry     resilience.RetryPolicy
	Breaker   resilience.BreakerConfig
	// DailyBudget caps spend per UTC day, in the provider's cost unit. Zero
	// means unlimited. It has no effect on providers that report no cost.
	DailyBudget float64
}

// Guarded wraps a Provider with a rate limiter, a circuit breaker, retries and
// a daily spend ceiling. Each retry attempt passes through the limiter and
// the breaker, and each attempt that reaches the provider is paid for.
type Guarded struct {
	Provider
	limiter *rate.Limiter
	breaker *resilience.Breaker
	policy  resilience.RetryPolicy
	budget  *resilience.QuotaTracker
	// calls is the number of calls the daily budget pays for; -1 means unlimited.
	calls  int
	logger *slog.Logger
}

func NewGuarded(p Provider, cfg GuardConfig, logger *slog.Logger) *Guarded {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	logger = logger.With("provider", p.Name())

	calls := -1
	if cfg.DailyBudget > 0 && p.CostPerCall() > 0 {
		calls = int(math.Floor(cfg.DailyBudget/p.CostPerCall() + 1e-9))
	}

	return &Guarded{
		Provider: p,
		limiter:  rate.NewLimiter(limit, burst),
		breaker:  resilience.NewBreaker(p.Name(), cfg.Breaker, logger),
		policy:   cfg.Retry,
		budget:   resilience.NewQuotaTracker(max(calls, 0)),
		calls:    calls,
		logger:   logger,
	}
}

// WithClock replaces the time source of the breaker and the daily budget.
func (g *Guarded) WithClock(now func() time.Time) *Guarded {
	g.breaker.WithClock(now)
	g.budget.WithClock(now)
	return g
}

func (g *Guarded) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := resilience.Retry(ctx, g.policy, g.logger, func(ctx context.Context) (string, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for rate limiter: %w", err)
		}
		reservation, err := g.reserve()
		if err != nil {
			return "", err
		}
		text, err := resilience.Call(g.breaker, func() (string, error) {
			return g.Provider.Complete(ctx, prompt)
		})
		if reservation != nil {
			if err != nil {
				reservation.Cancel()
			} else {
				reservation.Commit()
			}
		}
		return text, err
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", g.Name(), err)
	}
	return text, nil
}

func (g *Guarded) reserve() (*resilience.Reservation, error) {
	if g.calls < 0 {
		return nil, nil
	}
	if g.calls > 0 {
		if reservation, ok := g.budget.Reserve(g.Name()); ok {
			return reservation, nil
		}
	}
	g.logger.Warn("daily reasoning budget spent", "calls", g.calls, "cost_per_call", g.CostPerCall())
	return nil, fmt.Errorf("%s daily budget: %w", g.Name(), domain.ErrQuotaExceeded)
}

func (g *Guarded) BreakerState() resilience.State {
	return g.breaker.State()
}
