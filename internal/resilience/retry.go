package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// JitterFactor spreads each delay uniformly over ±30% of its nominal value.
const JitterFactor = 0.3

// ErrRetriesExhausted marks an error that already spent a full retry budget,
// so an enclosing Retry does not start another round on it.
var ErrRetriesExhausted = errors.New("retries exhausted")

type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Base       float64
	MaxDelay   time.Duration
	// Retryable decides whether an error is transient. Nil means DefaultRetryable.
	Retryable func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Base:       2,
		MaxDelay:   30 * time.Second,
	}
}

// HTTPStatusError reports a non-2xx response from an outbound call.
type HTTPStatusError struct {
	Code int
	URL  string
}

func (e *HTTPStatusError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("unexpected status: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// DefaultRetryable treats network resets, timeouts, rate limiting and upstream
// 5xx responses as transient. Caller cancellation, an open breaker and any
// other client error are returned immediately.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrRetriesExhausted) {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 429 || statusErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Base
	b.RandomizationFactor = JitterFactor
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
}

// Retry invokes op until it succeeds, returns a non-retryable error, or the
// policy's retry budget is spent. Delays grow as BaseDelay*Base^attempt, are
// capped at MaxDelay and carry ±30% jitter.
func Retry[T any](ctx context.Context, policy RetryPolicy, logger *slog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	retryable := policy.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	attempts := 0
	operation := func() (T, error) {
		attempts++
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		if logger != nil {
			logger.Warn("operation failed, retrying",
				"attempt", attempts,
				"backoff", wait,
				"error", err,
			)
		}
	}

	res, err := backoff.RetryNotifyWithData(operation, policy.backOff(ctx), notify)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if attempts > 1 && retryable(err) {
			return res, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
		}
		return res, err
	}
	return res, nil
}
