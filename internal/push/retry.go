package push

import (
	"context"
	"time"
)

// BackoffFunc returns the delay to wait after the given failed attempt.
// Attempt starts at 1.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff doubles base after every attempt: base, 2*base, 4*base...
func ExponentialBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt <= 0 || base <= 0 {
			return 0
		}
		if attempt > 30 {
			attempt = 30
		}
		return base << (attempt - 1)
	}
}

// RetryPolicy is a bounded retry loop shared by both channels.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries; values < 1 mean one try.
	MaxAttempts int
	// Backoff computes the wait between attempts; nil means no wait.
	Backoff BackoffFunc
	// IsRetryable decides whether a failed attempt may be retried; nil means always.
	IsRetryable func(error) bool
	// Sleep waits for d or until ctx is done; nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default mobile retry settings.
const (
	DefaultMobileAttempts  = 3
	DefaultMobileBaseDelay = 100 * time.Millisecond
)

// DefaultWebBaseDelay is the first backoff step when web retries are enabled.
const DefaultWebBaseDelay = 500 * time.Millisecond

// WebRetryPolicy returns the web channel policy for attempts tries, retrying
// only throttling, server and network failures.
func WebRetryPolicy(attempts int) RetryPolicy {
	if attempts <= 1 {
		return NoRetry
	}
	return RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     ExponentialBackoff(DefaultWebBaseDelay),
		IsRetryable: webRetryable,
	}
}

// NoRetry is a policy with a single attempt.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Retry runs fn under policy p. It stops early on success, on a
// non-retryable error, or when ctx is done, and returns the last outcome
// together with the number of attempts made.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var (
		res T
		err error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err = fn(ctx, attempt)
		if err == nil {
			return res, attempt, nil
		}
		if attempt == maxAttempts {
			return res, attempt, err
		}
		if p.IsRetryable != nil && !p.IsRetryable(err) {
			return res, attempt, err
		}
		if p.Backoff != nil {
			if serr := sleep(ctx, p.Backoff(attempt)); serr != nil {
				return res, attempt, err
			}
		} else if ctx.Err() != nil {
			return res, attempt, err
		}
	}
	return res, maxAttempts, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
