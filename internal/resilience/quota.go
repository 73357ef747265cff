package resilience

import (
	"sync"
	"time"
)

// QuotaTracker enforces a per-provider daily call budget. Counters reset at
// the UTC day boundary and are not persisted across restarts.
type QuotaTracker struct {
	limit int
	now   func() time.Time

	mu       sync.Mutex
	day      string
	used     map[string]int
	inflight map[string]int
}

// NewQuotaTracker creates a tracker; a limit of zero or less means unlimited.
func NewQuotaTracker(limit int) *QuotaTracker {
	return &QuotaTracker{
		limit:    limit,
		now:      time.Now,
		used:     make(map[string]int),
		inflight: make(map[string]int),
	}
}

func (q *QuotaTracker) WithClock(now func() time.Time) *QuotaTracker {
	q.now = now
	return q
}

// Reservation holds one slot of a provider's daily budget until it is
// committed or cancelled.
type Reservation struct {
	tracker  *QuotaTracker
	provider string
	day      string
	once     sync.Once
}

// Reserve claims a slot if used plus in-flight calls are still under the limit.
func (q *QuotaTracker) Reserve(provider string) (*Reservation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	if q.limit > 0 && q.used[provider]+q.inflight[provider] >= q.limit {
		return nil, false
	}
	q.inflight[provider]++
	return &Reservation{tracker: q, provider: provider, day: q.day}, true
}

// Commit counts the reserved call against today's budget.
func (r *Reservation) Commit() {
	r.once.Do(func() {
		r.tracker.settle(r, true)
	})
}

// Cancel releases the slot without counting it.
func (r *Reservation) Cancel() {
	r.once.Do(func() {
		r.tracker.settle(r, false)
	})
}

func (q *QuotaTracker) settle(r *Reservation, commit bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	if r.day != q.day {
		return
	}
	if q.inflight[r.provider] > 0 {
		q.inflight[r.provider]--
	}
	if commit {
		q.used[r.provider]++
	}
}

func (q *QuotaTracker) Used(provider string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	return q.used[provider]
}

func (q *QuotaTracker) Remaining(provider string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	if q.limit <= 0 {
		return -1
	}
	left := q.limit - q.used[provider] - q.inflight[provider]
	if left < 0 {
		return 0
	}
	return left
}

func (q *QuotaTracker) rollover() {
	day := q.now().UTC().Format(time.DateOnly)
	if day == q.day {
		return
	}
	q.day = day
	q.used = make(map[string]int)
	q.inflight = make(map[string]int)
}
