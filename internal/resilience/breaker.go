package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("service unavailable: circuit open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Breaker stops calling a failing dependency once FailureThreshold consecutive
// failures are seen. After ResetTimeout exactly one trial call is let through;
// its outcome closes or reopens the circuit.
type Breaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

func NewBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	reset := cfg.ResetTimeout
	if reset <= 0 {
		reset = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: reset,
		now:          time.Now,
		logger:       logger.With("breaker", name),
	}
}

// WithClock replaces the time source. Used by tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) Execute(fn func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := fn()
	b.release(err)
	return err
}

// Call is Execute for operations that return a value.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var res T
	err := b.Execute(func() error {
		var err error
		res, err = fn()
		return err
	})
	return res, err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.trial = true
		return nil
	case StateHalfOpen:
		if b.trial {
			return ErrCircuitOpen
		}
		b.trial = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) release(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		// the caller gave up; the outcome says nothing about the dependency
		b.trial = false
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.trial = false
		if err != nil {
			b.open()
			return
		}
		b.failures = 0
		b.transition(StateClosed)
	case StateClosed:
		if err == nil {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.threshold {
			b.open()
		}
	}
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.transition(StateOpen)
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	b.logger.Warn("circuit breaker state changed",
		"from", b.state.String(),
		"to", to.String(),
		"failures", b.failures,
	)
	b.state = to
}
