package executor

import (
	"sync"
	"time"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

type BreakerStats struct {
	Endpoint            string
	State               CircuitState
	ConsecutiveFailures int
	OpenedAt            time.Time
	FailureThreshold    int
	ResetAfter          time.Duration
}

// CircuitBreaker guards a single remote endpoint. It opens after
// FailureThreshold consecutive exhausted calls and lets one probe through
// once ResetAfter has elapsed.
type CircuitBreaker struct {
	mu sync.Mutex

	endpoint   string
	threshold  int
	resetAfter time.Duration
	now        func() time.Time

	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	probing             bool
}

func NewCircuitBreaker(endpoint string, threshold int, resetAfter time.Duration, now func() time.Time) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{
		endpoint:   endpoint,
		threshold:  threshold,
		resetAfter: resetAfter,
		now:        now,
	}
}

// Allow returns a *contractx.CircuitOpenError when the call must not reach the transport.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed < b.resetAfter {
			return &contractx.CircuitOpenError{
				Endpoint:   b.endpoint,
				OpenedAt:   b.openedAt,
				RetryAfter: b.resetAfter - elapsed,
			}
		}
		b.state = CircuitHalfOpen
		b.probing = true
		return nil
	case CircuitHalfOpen:
		if b.probing {
			return &contractx.CircuitOpenError{Endpoint: b.endpoint, OpenedAt: b.openedAt}
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.state = CircuitClosed
	b.openedAt = time.Time{}
	b.probing = false
}

// RecordFailure counts one exhausted call and reports whether the breaker is now open.
func (b *CircuitBreaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.probing = false
	if b.state == CircuitHalfOpen || b.consecutiveFailures >= b.threshold {
		b.state = CircuitOpen
		b.openedAt = b.now()
	}
	return b.state == CircuitOpen
}

// ReleaseProbe gives up a HalfOpen probe slot without deciding the next state,
// so the following call probes instead.
func (b *CircuitBreaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *CircuitBreaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BreakerStats{
		Endpoint:            b.endpoint,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		OpenedAt:            b.openedAt,
		FailureThreshold:    b.threshold,
		ResetAfter:          b.resetAfter,
	}
}

func (b *CircuitBreaker) Reset() {
	b.RecordSuccess()
}
