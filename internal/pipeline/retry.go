package pipeline

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how often a failed completion call is repeated.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy retries three times, doubling from one second up to 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	b = retry.WithJitterPercent(50, b)
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// IsRetryable checks if an error is worth retrying. Cancellation never is.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// withRetry runs fn until it succeeds, returns a non-retryable error, or the
// policy gives up. onRetry is called before each repeat.
func withRetry(ctx context.Context, p RetryPolicy, onRetry func(attempt int, err error), fn func(ctx context.Context) error) error {
	attempt := 0
	var lastErr error
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		if attempt > 0 && onRetry != nil {
			onRetry(attempt, lastErr)
		}
		attempt++
		lastErr = fn(ctx)
		if lastErr != nil && IsRetryable(lastErr) {
			return retry.RetryableError(lastErr)
		}
		return lastErr
	})
}
