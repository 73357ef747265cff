package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/resilience"
)

type fakeProvider struct {
	name   string
	calls  atomic.Int32
	result func(n int) Result
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Extract(ctx context.Context, in Input) Result {
	n := int(p.calls.Add(1))
	return p.result(n)
}

func returns(r Result) func(int) Result {
	return func(int) Result { return r }
}

type RouterTestSuite struct {
	suite.Suite
	now time.Time

	structured *fakeProvider
	direct     *fakeProvider
	content    *fakeProvider

	router *Router
	schema domain.ExtractionSchema
}

func (s *RouterTestSuite) SetupTest() {
	s.now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s.schema = domain.ExtractionSchema{Item: ".card", Fields: map[string]string{"title": "h2"}}

	listing := []map[string]any{{"title": "2019 Toyota Corolla"}}
	s.structured = &fakeProvider{name: "structured", result: returns(Success(listing))}
	s.direct = &fakeProvider{name: "direct", result: returns(Success(listing))}
	s.content = &fakeProvider{name: "content", result: returns(Success(listing))}

	s.router = s.newRouter(2)
}

func (s *RouterTestSuite) newRouter(quota int) *Router {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	r := NewRouter(Config{
		CacheTTL:   24 * time.Hour,
		DedupTTL:   time.Minute,
		DailyQuota: quota,
		Retry: resilience.RetryPolicy{
			MaxRetries: 1,
			BaseDelay:  time.Millisecond,
			Base:       2,
			MaxDelay:   time.Millisecond,
		},
		Breaker: resilience.BreakerConfig{FailureThreshold: 10, ResetTimeout: time.Minute},
	}, logger)

	r.Register(domain.SourceStructured,
		Tier{Provider: s.structured, Cached: true, Metered: true},
		Tier{Provider: s.direct},
		Tier{Provider: s.content},
	)
	r.Register(domain.SourceUnstructured,
		Tier{Provider: s.direct},
		Tier{Provider: s.content},
	)
	return r.WithClock(func() time.Time { return s.now })
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) TestStructuredFirstTierWins() {
	ext, err := s.router.Route(context.Background(), "https://cars.example/list", domain.SourceStructured, s.schema)

	s.Require().NoError(err)
	s.Equal("structured", ext.Tier)
	s.Len(ext.Records, 1)
	s.Equal(int32(0), s.direct.calls.Load())
	s.Equal(1, s.router.QuotaUsed("structured"))
}

func (s *RouterTestSuite) TestUnstructuredSkipsStructuredTier() {
	ext, err := s.router.Route(context.Background(), "https://classifieds.example/a", domain.SourceUnstructured, domain.ExtractionSchema{})

	s.Require().NoError(err)
	s.Equal("direct", ext.Tier)
	s.Len(ext.Records, 1)
	s.Equal(int32(0), s.structured.calls.Load())
	s.Equal(0, s.router.QuotaUsed("structured"))
}

func (s *RouterTestSuite) TestFallsBackWhenStructuredEmpty() {
	s.structured.result = returns(Empty())

	ext, err := s.router.Route(context.Background(), "https://cars.example/list", domain.SourceStructured, s.schema)

	s.Require().NoError(err)
	s.Equal("direct", ext.Tier)
	s.Equal(0, s.router.QuotaUsed("structured"))
	s.Equal(int32(0), s.content.calls.Load())
}

func (s *RouterTestSuite) TestContentTierIsLastResort() {
	s.structured.result = returns(Failed(&resilience.HTTPStatusError{Code: 403}))
	s.direct.result = returns(Empty())

	ext, err := s.router.Route(context.Background(), "https://cars.example/list", domain.SourceStructured, s.schema)

	s.Require().NoError(err)
	s.Equal("content", ext.Tier)
	s.Equal(int32(1), s.structured.calls.Load())
}

func (s *RouterTestSuite) TestCacheHitShortCircuits() {
	ctx := context.Background()
	url := "https://cars.example/list"

	_, err := s.router.Route(ctx, url, domain.SourceStructured, s.schema)
	s.Require().NoError(err)

	s.now = s.now.Add(2 * time.Minute)
	ext, err := s.router.Route(ctx, url, domain.SourceStructured, s.schema)

	s.Require().NoError(err)
	s.True(ext.FromCache)
	s.Equal(int32(1), s.structured.calls.Load())
	s.Equal(1, s.router.QuotaUsed("structured"))

	stats := s.router.Stats()
	s.Equal(int64(1), stats.CacheHits)
	s.InDelta(0.5, stats.CacheHitRate, 1e-9)
}

func (s *RouterTestSuite) TestCacheKeyIncludesSchema() {
	ctx := context.Background()
	url := "https://cars.example/list"

	_, err := s.router.Route(ctx, url, domain.SourceStructured, s.schema)
	s.Require().NoError(err)

	s.now = s.now.Add(2 * time.Minute)
	other := domain.ExtractionSchema{Item: ".card", Fields: map[string]string{"title": "h3"}}
	ext, err := s.router.Route(ctx, url, domain.SourceStructured, other)

	s.Require().NoError(err)
	s.False(ext.FromCache)
	s.Equal(int32(2), s.structured.calls.Load())
}

func (s *RouterTestSuite) TestDedupSkipsRecentURL() {
	ctx := context.Background()

	_, err := s.router.Route(ctx, "https://classifieds.example/a", domain.SourceUnstructured, domain.ExtractionSchema{})
	s.Require().NoError(err)

	ext, err := s.router.Route(ctx, "https://www.classifieds.example/a#top", domain.SourceUnstructured, domain.ExtractionSchema{})
	s.Require().NoError(err)
	s.True(ext.Skipped)
	s.Equal(int32(1), s.direct.calls.Load())
}

func (s *RouterTestSuite) TestQuotaExhaustedSkipsMeteredTier() {
	ctx := context.Background()
	for _, url := range []string{"https://cars.example/1", "https://cars.example/2"} {
		_, err := s.router.Route(ctx, url, domain.SourceStructured, s.schema)
		s.Require().NoError(err)
	}

	ext, err := s.router.Route(ctx, "https://cars.example/3", domain.SourceStructured, s.schema)

	s.Require().NoError(err)
	s.Equal("direct", ext.Tier)
	s.Equal(int32(2), s.structured.calls.Load())
	s.Equal(int64(1), s.router.Stats().Tiers["structured"].QuotaSkipped)

	s.now = s.now.Add(24 * time.Hour)
	ext, err = s.router.Route(ctx, "https://cars.example/4", domain.SourceStructured, s.schema)
	s.Require().NoError(err)
	s.Equal("structured", ext.Tier)
}

func (s *RouterTestSuite) TestAllTiersFail() {
	boom := errors.New("boom")
	s.direct.result = returns(Failed(boom))
	s.content.result = returns(Failed(boom))

	_, err := s.router.Route(context.Background(), "https://classifieds.example/b", domain.SourceUnstructured, domain.ExtractionSchema{})

	s.Require().ErrorIs(err, domain.ErrExtractionFailure)
	s.ErrorIs(err, boom)

	stats := s.router.Stats()
	s.Equal(int64(1), stats.Tiers["direct"].Failures)
	s.InDelta(0.0, stats.Tiers["direct"].SuccessRate, 1e-9)
}

func (s *RouterTestSuite) TestAllTiersEmpty() {
	s.direct.result = returns(Empty())
	s.content.result = returns(Empty())

	ext, err := s.router.Route(context.Background(), "https://classifieds.example/c", domain.SourceUnstructured, domain.ExtractionSchema{})

	s.Require().NoError(err)
	s.Empty(ext.Records)
}

func (s *RouterTestSuite) TestTransientFailureRetried() {
	s.direct.result = func(n int) Result {
		if n == 1 {
			return Failed(&resilience.HTTPStatusError{Code: 503})
		}
		return Success([]map[string]any{{"title": "ok"}})
	}

	ext, err := s.router.Route(context.Background(), "https://classifieds.example/d", domain.SourceUnstructured, domain.ExtractionSchema{})

	s.Require().NoError(err)
	s.Equal("direct", ext.Tier)
	s.Equal(int32(2), s.direct.calls.Load())
}

func (s *RouterTestSuite) TestOpenBreakerFallsThroughToNextTier() {
	ctx := context.Background()
	s.structured.result = returns(Failed(errors.New("selector backend down")))

	for i := range 10 {
		ext, err := s.router.Route(ctx, fmt.Sprintf("https://cars.example/p%d", i), domain.SourceStructured, s.schema)
		s.Require().NoError(err)
		s.Equal("direct", ext.Tier)
	}
	s.Equal(int32(10), s.structured.calls.Load())

	ext, err := s.router.Route(ctx, "https://cars.example/p10", domain.SourceStructured, s.schema)

	s.Require().NoError(err)
	s.Equal("direct", ext.Tier)
	s.Equal(int32(10), s.structured.calls.Load())
	s.Equal(int32(11), s.direct.calls.Load())
	s.Equal(0, s.router.QuotaUsed("structured"))

	s.direct.result = returns(Failed(errors.New("boom")))
	s.content.result = returns(Failed(errors.New("boom")))

	_, err = s.router.Route(ctx, "https://cars.example/p11", domain.SourceStructured, s.schema)

	s.Require().ErrorIs(err, domain.ErrExtractionFailure)
	s.ErrorIs(err, resilience.ErrCircuitOpen)
	s.Equal(int32(10), s.structured.calls.Load())
}

func (s *RouterTestSuite) TestSuccessCarriesPageContent() {
	ctx := context.Background()
	url := "https://cars.example/list"
	page := "<html><body><div class=\"card\">Corolla</div></body></html>"
	s.structured.result = returns(Success([]map[string]any{{"title": "Corolla"}}).WithContent(page))

	ext, err := s.router.Route(ctx, url, domain.SourceStructured, s.schema)
	s.Require().NoError(err)
	s.Equal(page, ext.Content)

	s.now = s.now.Add(2 * time.Minute)
	ext, err = s.router.Route(ctx, url, domain.SourceStructured, s.schema)

	s.Require().NoError(err)
	s.True(ext.FromCache)
	s.Equal(page, ext.Content)
}

func (s *RouterTestSuite) TestPageFetchedWhenTierReadNoPage() {
	fetcher := &stubFetcher{body: "<html><body>Terms of use</body></html>"}
	s.router.WithPageFetcher(fetcher)

	ext, err := s.router.Route(context.Background(), "https://classifieds.example/e", domain.SourceUnstructured, domain.ExtractionSchema{})

	s.Require().NoError(err)
	s.Equal("direct", ext.Tier)
	s.Equal("<html><body>Terms of use</body></html>", ext.Content)
	s.Equal(1, fetcher.calls)
}

func (s *RouterTestSuite) TestPageFetchFailureKeepsRecords() {
	s.router.WithPageFetcher(&stubFetcher{err: errors.New("connection reset")})

	ext, err := s.router.Route(context.Background(), "https://classifieds.example/f", domain.SourceUnstructured, domain.ExtractionSchema{})

	s.Require().NoError(err)
	s.Len(ext.Records, 1)
	s.Empty(ext.Content)
}

func (s *RouterTestSuite) TestUnknownSourceType() {
	_, err := s.router.Route(context.Background(), "https://x.example", domain.SourceType("feed"), s.schema)
	s.ErrorIs(err, domain.ErrExtractionFailure)
}
