package executor

import (
	"errors"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
)

func TestCircuitBreakerLetsSingleProbeThrough(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewCircuitBreaker("tools", 1, 10*time.Second, clock.Now)

	if opened := b.RecordFailure(); !opened {
		t.Fatal("expected breaker to open at threshold")
	}

	err := b.Allow()
	var open *contractx.CircuitOpenError
	if !errors.As(err, &open) {
		t.Fatalf("Allow() error = %v, want CircuitOpenError", err)
	}
	if open.RetryAfter != 10*time.Second {
		t.Fatalf("RetryAfter = %s, want 10s", open.RetryAfter)
	}

	clock.Advance(10 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe Allow() error = %v", err)
	}
	if got := b.Stats().State; got != CircuitHalfOpen {
		t.Fatalf("state = %s, want half_open", got)
	}
	if err := b.Allow(); !errors.Is(err, contractx.ErrCircuitOpen) {
		t.Fatalf("second Allow() during probe error = %v, want ErrCircuitOpen", err)
	}

	b.RecordSuccess()
	stats := b.Stats()
	if stats.State != CircuitClosed || stats.ConsecutiveFailures != 0 || !stats.OpenedAt.IsZero() {
		t.Fatalf("unexpected stats after success: %+v", stats)
	}
}

func TestCircuitBreakerReleaseProbe(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewCircuitBreaker("tools", 1, time.Second, clock.Now)
	b.RecordFailure()
	clock.Advance(time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("probe Allow() error = %v", err)
	}
	b.ReleaseProbe()
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after ReleaseProbe error = %v", err)
	}
	if got := b.Stats(); got.State != CircuitHalfOpen || got.ConsecutiveFailures != 1 {
		t.Fatalf("unexpected stats after release: %+v", got)
	}
}

func TestCircuitStateString(t *testing.T) {
	t.Parallel()

	cases := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half_open",
		CircuitState(42): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("String() = %q, want %q", got, want)
		}
	}
}
