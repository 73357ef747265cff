package resilience

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

// Cache is a TTL-bounded map safe for concurrent use. Expired entries are
// treated as misses and evicted on read.
type Cache[K comparable, V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[K]cacheEntry[V]
}

func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]cacheEntry[V]),
	}
}

func (c *Cache[K, V]) WithClock(now func() time.Time) *Cache[K, V] {
	c.now = now
	return c
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.insertedAt) >= e.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry[V]{value: value, insertedAt: c.now(), ttl: ttl}
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len counts stored entries, including expired ones not yet pruned.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Prune evicts every expired entry and returns how many were removed.
func (c *Cache[K, V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) >= e.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// URLDedupCache remembers recently processed URLs so a page is not
// re-extracted within the TTL window.
type URLDedupCache struct {
	cache *Cache[string, bool]
}

func NewURLDedupCache(ttl time.Duration) *URLDedupCache {
	return &URLDedupCache{cache: NewCache[string, bool](ttl)}
}

func (d *URLDedupCache) WithClock(now func() time.Time) *URLDedupCache {
	d.cache.WithClock(now)
	return d
}

func (d *URLDedupCache) Seen(rawURL string) bool {
	_, ok := d.cache.Get(NormalizeURL(rawURL))
	return ok
}

func (d *URLDedupCache) Mark(rawURL string) {
	d.cache.Set(NormalizeURL(rawURL), true)
}

func (d *URLDedupCache) Forget(rawURL string) {
	d.cache.Delete(NormalizeURL(rawURL))
}

// NormalizeURL drops the fragment and a leading "www.", lower-cases the host
// and defaults the scheme to https.
func NormalizeURL(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return rawURL
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}
	if parsed.Path == "/" && parsed.RawQuery == "" {
		parsed.Path = ""
	}
	parsed.RawPath = ""

	return parsed.String()
}
