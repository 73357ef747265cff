package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/resilience"
)

const DefaultCacheTTL = 24 * time.Hour

type Config struct {
	CacheTTL   time.Duration
	DedupTTL   time.Duration
	DailyQuota int
	Retry      resilience.RetryPolicy
	Breaker    resilience.BreakerConfig
}

// Extraction is the outcome of routing one URL. Content is the page markup
// the records came from, when known.
type Extraction struct {
	URL       string
	Tier      string
	Records   []map[string]any
	Content   string
	FromCache bool
	// Skipped is set when the URL was processed within the dedup window.
	Skipped bool
}

// Router tries the tiers registered for a source type in cost order and
// stops at the first one that yields records.
type Router struct {
	tiers    map[domain.SourceType][]Tier
	breakers map[string]*resilience.Breaker
	cache    *resilience.Cache[string, Result]
	dedup    *resilience.URLDedupCache
	pages    Fetcher
	quota    *resilience.QuotaTracker
	policy   resilience.RetryPolicy
	breaker  resilience.BreakerConfig
	metrics  *metrics
	logger   *slog.Logger
}

func NewRouter(cfg Config, logger *slog.Logger) *Router {
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	dedupTTL := cfg.DedupTTL
	if dedupTTL <= 0 {
		dedupTTL = cacheTTL
	}

	return &Router{
		tiers:    make(map[domain.SourceType][]Tier),
		breakers: make(map[string]*resilience.Breaker),
		cache:    resilience.NewCache[string, Result](cacheTTL),
		dedup:    resilience.NewURLDedupCache(dedupTTL),
		quota:    resilience.NewQuotaTracker(cfg.DailyQuota),
		policy:   cfg.Retry,
		breaker:  cfg.Breaker,
		metrics:  newMetrics(),
		logger:   logger.With("component", "extraction_router"),
	}
}

// WithClock replaces the time source of the cache, dedup window and quota.
func (r *Router) WithClock(now func() time.Time) *Router {
	r.cache.WithClock(now)
	r.dedup.WithClock(now)
	r.quota.WithClock(now)
	for _, b := range r.breakers {
		b.WithClock(now)
	}
	return r
}

// WithPageFetcher makes the router fetch the page itself when the winning
// tier did not read it, so callers always get the page content back.
func (r *Router) WithPageFetcher(pages Fetcher) *Router {
	r.pages = pages
	return r
}

// Register sets the ordered tiers for a source type. Call during setup only.
func (r *Router) Register(sourceType domain.SourceType, tiers ...Tier) *Router {
	r.tiers[sourceType] = tiers
	for _, t := range tiers {
		name := t.Provider.Name()
		if _, ok := r.breakers[name]; !ok {
			r.breakers[name] = resilience.NewBreaker(name, r.breaker, r.logger)
		}
	}
	return r
}

func (r *Router) Stats() Stats {
	s := r.metrics.snapshot()
	for _, tiers := range r.tiers {
		for _, t := range tiers {
			if t.Metered {
				s.QuotaUsed[t.Provider.Name()] = r.quota.Used(t.Provider.Name())
			}
		}
	}
	return s
}

func (r *Router) QuotaUsed(provider string) int {
	return r.quota.Used(provider)
}

func (r *Router) Route(ctx context.Context, url string, sourceType domain.SourceType, schema domain.ExtractionSchema) (*Extraction, error) {
	return r.RouteInput(ctx, Input{URL: url, Schema: schema}, sourceType)
}

// RouteInput is Route for callers that already hold the page content.
func (r *Router) RouteInput(ctx context.Context, in Input, sourceType domain.SourceType) (*Extraction, error) {
	tiers, ok := r.tiers[sourceType]
	if !ok || len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers for source type %q", domain.ErrExtractionFailure, sourceType)
	}

	logger := r.logger.With("url", in.URL, "source_type", sourceType)

	if in.URL != "" && r.dedup.Seen(in.URL) {
		r.metrics.dedupSkips.Add(1)
		logger.Debug("url processed recently, skipping")
		return &Extraction{URL: in.URL, Skipped: true}, nil
	}

	var (
		errs     []error
		anyRan   bool
		anyEmpty bool
	)

	for _, tier := range tiers {
		name := tier.Provider.Name()
		tierLogger := logger.With("tier", name)

		if tier.Cached {
			if cached, ok := r.cache.Get(cacheKey(name, in)); ok {
				r.metrics.cacheHits.Add(1)
				tierLogger.Debug("extraction cache hit", "records", len(cached.Records))
				r.markProcessed(in.URL)
				return &Extraction{
					URL:       in.URL,
					Tier:      name,
					Records:   cached.Records,
					Content:   r.pageContent(ctx, in, cached, tierLogger),
					FromCache: true,
				}, nil
			}
			r.metrics.cacheMisses.Add(1)
		}

		var reservation *resilience.Reservation
		if tier.Metered {
			res, ok := r.quota.Reserve(name)
			if !ok {
				r.metrics.tier(name).quota.Add(1)
				tierLogger.Warn("daily quota exhausted, skipping tier")
				errs = append(errs, fmt.Errorf("%s: %w", name, domain.ErrQuotaExceeded))
				continue
			}
			reservation = res
		}

		anyRan = true
		result := r.call(ctx, tier, in, tierLogger)

		switch result.Status {
		case StatusSuccess:
			if reservation != nil {
				reservation.Commit()
			}
			if tier.Cached {
				r.cache.Set(cacheKey(name, in), result)
			}
			r.markProcessed(in.URL)
			tierLogger.Info("extraction succeeded", "records", len(result.Records))
			return &Extraction{
				URL:     in.URL,
				Tier:    name,
				Records: result.Records,
				Content: r.pageContent(ctx, in, result, tierLogger),
			}, nil
		case StatusEmpty:
			anyEmpty = true
			tierLogger.Debug("tier returned no records")
		default:
			errs = append(errs, fmt.Errorf("%s: %w", name, result.Err))
			tierLogger.Warn("tier failed", "error", result.Err)
		}
		if reservation != nil {
			reservation.Cancel()
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("route %s: %w", in.URL, err)
		}
	}

	if anyEmpty {
		r.markProcessed(in.URL)
		return &Extraction{URL: in.URL}, nil
	}

	if !anyRan {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailure, errors.Join(errs...))
	}
	return nil, fmt.Errorf("%w: all tiers exhausted: %w", domain.ErrExtractionFailure, errors.Join(errs...))
}

func (r *Router) call(ctx context.Context, tier Tier, in Input, logger *slog.Logger) Result {
	name := tier.Provider.Name()
	counters := r.metrics.tier(name)
	breaker := r.breakers[name]

	counters.calls.Add(1)
	result, err := resilience.Retry(ctx, r.policy, logger, func(ctx context.Context) (Result, error) {
		return resilience.Call(breaker, func() (Result, error) {
			res := tier.Provider.Extract(ctx, in)
			if res.Status == StatusFailed {
				return res, res.Err
			}
			return res, nil
		})
	})
	if err != nil {
		counters.failures.Add(1)
		return Failed(err)
	}

	if result.Status == StatusEmpty {
		counters.empty.Add(1)
	} else {
		counters.successes.Add(1)
	}
	return result
}

// pageContent returns the markup behind a successful result. A failed fetch
// only costs the caller the content, never the records.
func (r *Router) pageContent(ctx context.Context, in Input, result Result, logger *slog.Logger) string {
	switch {
	case result.Content != "":
		return result.Content
	case in.Content != "":
		return in.Content
	case r.pages == nil || in.URL == "":
		return ""
	}

	page, err := r.pages.Get(ctx, in.URL)
	if err != nil {
		logger.Warn("failed to fetch page content", "error", err)
		return ""
	}
	return page.Body
}

func (r *Router) markProcessed(url string) {
	if url != "" {
		r.dedup.Mark(url)
	}
}

func cacheKey(tier string, in Input) string {
	return tier + "|" + resilience.NormalizeURL(in.URL) + "|" + in.Schema.Key()
}
