package extraction

import (
	"sync"
	"sync/atomic"
)

type tierCounters struct {
	calls     atomic.Int64
	successes atomic.Int64
	empty     atomic.Int64
	failures  atomic.Int64
	quota     atomic.Int64
}

type metrics struct {
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	dedupSkips  atomic.Int64

	mu    sync.Mutex
	tiers map[string]*tierCounters
}

func newMetrics() *metrics {
	return &metrics{tiers: make(map[string]*tierCounters)}
}

func (m *metrics) tier(name string) *tierCounters {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.tiers[name]
	if !ok {
		c = &tierCounters{}
		m.tiers[name] = c
	}
	return c
}

type TierStats struct {
	Calls        int64   `json:"calls"`
	Successes    int64   `json:"successes"`
	Empty        int64   `json:"empty"`
	Failures     int64   `json:"failures"`
	QuotaSkipped int64   `json:"quota_skipped"`
	SuccessRate  float64 `json:"success_rate"`
}

// Stats is a point-in-time snapshot of router telemetry.
type Stats struct {
	CacheHits    int64                `json:"cache_hits"`
	CacheMisses  int64                `json:"cache_misses"`
	CacheHitRate float64              `json:"cache_hit_rate"`
	DedupSkips   int64                `json:"dedup_skips"`
	Tiers        map[string]TierStats `json:"tiers"`
	QuotaUsed    map[string]int       `json:"quota_used"`
}

func (m *metrics) snapshot() Stats {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()

	s := Stats{
		CacheHits:   hits,
		CacheMisses: misses,
		DedupSkips:  m.dedupSkips.Load(),
		Tiers:       make(map[string]TierStats),
		QuotaUsed:   make(map[string]int),
	}
	if hits+misses > 0 {
		s.CacheHitRate = float64(hits) / float64(hits+misses)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for name, c := range m.tiers {
		ts := TierStats{
			Calls:        c.calls.Load(),
			Successes:    c.successes.Load(),
			Empty:        c.empty.Load(),
			Failures:     c.failures.Load(),
			QuotaSkipped: c.quota.Load(),
		}
		if ts.Calls > 0 {
			ts.SuccessRate = float64(ts.Successes) / float64(ts.Calls)
		}
		s.Tiers[name] = ts
	}
	return s
}
