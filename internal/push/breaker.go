package push

import (
	"sync/atomic"
	"time"
)

// CircuitState represents the current state of a CircuitBreaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the cooldown has elapsed.
	CircuitOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Breaker defaults.
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerTimeout   = 60 * time.Second
)

// CircuitBreaker guards a push channel against a failing provider.
//
// It has two states. It opens once failureCount reaches the threshold and
// closes again, with counters reset, the first time it is consulted after
// timeout has elapsed since the last failure. There is no background timer.
//
// Each field is an individual atomic and there is no lock across them: a
// concurrent success and failure may interleave, so counts are approximate
// under contention. Only the trip behaviour matters.
type CircuitBreaker struct {
	threshold int64
	timeout   time.Duration
	now       func() time.Time

	failures    atomic.Int64
	lastFailure atomic.Int64 // unix nanos, 0 when unset
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithClock injects the time source used for cooldown checks.
func WithClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

// NewCircuitBreaker builds a closed breaker. Non-positive arguments fall back
// to DefaultBreakerThreshold and DefaultBreakerTimeout.
func NewCircuitBreaker(threshold int, timeout time.Duration, opts ...BreakerOption) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}
	cb := &CircuitBreaker{
		threshold: int64(threshold),
		timeout:   timeout,
		now:       time.Now,
	}
	for _, o := range opts {
		o(cb)
	}
	return cb
}

// IsOpen reports whether calls must be rejected. When the cooldown has
// elapsed it closes the breaker as a side effect.
func (cb *CircuitBreaker) IsOpen() bool {
	if cb.failures.Load() < cb.threshold {
		return false
	}
	last := cb.lastFailure.Load()
	if last != 0 && cb.now().Sub(time.Unix(0, last)) > cb.timeout {
		cb.Reset()
		return false
	}
	return true
}

// Allow is the negation of IsOpen.
func (cb *CircuitBreaker) Allow() bool { return !cb.IsOpen() }

// RecordSuccess resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.failures.Store(0)
}

// RecordFailure increments the failure count and stamps the failure time.
func (cb *CircuitBreaker) RecordFailure() {
	cb.lastFailure.Store(cb.now().UnixNano())
	cb.failures.Add(1)
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.failures.Store(0)
	cb.lastFailure.Store(0)
}

// State returns the current state without side effects.
func (cb *CircuitBreaker) State() CircuitState {
	if cb.failures.Load() < cb.threshold {
		return CircuitClosed
	}
	last := cb.lastFailure.Load()
	if last != 0 && cb.now().Sub(time.Unix(0, last)) > cb.timeout {
		return CircuitClosed
	}
	return CircuitOpen
}

// CircuitStats provides visibility into breaker state for monitoring.
type CircuitStats struct {
	State           string     `json:"state"`
	Failures        int        `json:"failures"`
	Threshold       int        `json:"threshold"`
	TimeoutSeconds  float64    `json:"timeout_seconds"`
	LastFailureTime *time.Time `json:"last_failure_time,omitempty"`
}

// Stats returns a snapshot of the breaker.
func (cb *CircuitBreaker) Stats() CircuitStats {
	s := CircuitStats{
		State:          cb.State().String(),
		Failures:       int(cb.failures.Load()),
		Threshold:      int(cb.threshold),
		TimeoutSeconds: cb.timeout.Seconds(),
	}
	if last := cb.lastFailure.Load(); last != 0 {
		t := time.Unix(0, last).UTC()
		s.LastFailureTime = &t
	}
	return s
}
