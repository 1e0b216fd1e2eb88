package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel/metric"
)

const (
	// p95 is only reported once this many samples exist.
	minPercentileSamples = 20
	DefaultWindow        = 10000
)

type Outcome string

const (
	OutcomeCall    Outcome = "call"
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeRetry   Outcome = "retry"
)

type Config struct {
	// Window bounds the number of latency samples kept. Zero or less keeps every sample.
	Window int `split_words:"true" default:"10000"`
}

type Snapshot struct {
	Calls        int64
	Errors       int64
	Retries      int64
	LatenciesMs  []float64
	AvgLatencyMs float64
	P95LatencyMs *float64
}

// Export is the shape served to health and metrics endpoints.
type Export struct {
	ToolCalls    int64    `json:"tool_calls"`
	ToolErrors   int64    `json:"tool_errors"`
	ToolRetries  int64    `json:"tool_retries"`
	AvgLatencyMs float64  `json:"avg_latency_ms"`
	P95LatencyMs *float64 `json:"p95_latency_ms"`
}

type Option func(*Aggregator)

// WithMeter mirrors every recorded outcome into OpenTelemetry instruments.
func WithMeter(meter metric.Meter) Option {
	return func(a *Aggregator) {
		a.meter = meter
	}
}

// Aggregator accumulates tool call counters and latency samples.
type Aggregator struct {
	calls   *xsync.Counter
	errors  *xsync.Counter
	retries *xsync.Counter

	mu      sync.Mutex
	window  int
	samples []float64
	next    int
	full    bool

	meter       metric.Meter
	callCounter metric.Int64Counter
	errCounter  metric.Int64Counter
	retryCount  metric.Int64Counter
	latencyHist metric.Float64Histogram
}

func New(cfg Config, opts ...Option) (*Aggregator, error) {
	a := &Aggregator{
		calls:   xsync.NewCounter(),
		errors:  xsync.NewCounter(),
		retries: xsync.NewCounter(),
		window:  cfg.Window,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.meter != nil {
		if err := a.initInstruments(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func MustNew(cfg Config, opts ...Option) *Aggregator {
	a, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Aggregator) initInstruments() error {
	var err error
	if a.callCounter, err = a.meter.Int64Counter("tool.calls",
		metric.WithDescription("Total tool calls issued"),
		metric.WithUnit("{call}"),
	); err != nil {
		return fmt.Errorf("create tool.calls counter: %w", err)
	}
	if a.errCounter, err = a.meter.Int64Counter("tool.errors",
		metric.WithDescription("Tool calls that failed after exhausting retries"),
		metric.WithUnit("{call}"),
	); err != nil {
		return fmt.Errorf("create tool.errors counter: %w", err)
	}
	if a.retryCount, err = a.meter.Int64Counter("tool.retries",
		metric.WithDescription("Tool call retry attempts"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return fmt.Errorf("create tool.retries counter: %w", err)
	}
	if a.latencyHist, err = a.meter.Float64Histogram("tool.latency",
		metric.WithDescription("Latency of successful tool invocations"),
		metric.WithUnit("ms"),
	); err != nil {
		return fmt.Errorf("create tool.latency histogram: %w", err)
	}
	return nil
}

// Record registers one outcome. A latency sample is only kept for OutcomeSuccess.
func (a *Aggregator) Record(ctx context.Context, outcome Outcome, latencyMs ...float64) {
	switch outcome {
	case OutcomeCall:
		a.calls.Inc()
		if a.callCounter != nil {
			a.callCounter.Add(ctx, 1)
		}
	case OutcomeError:
		a.errors.Inc()
		if a.errCounter != nil {
			a.errCounter.Add(ctx, 1)
		}
	case OutcomeRetry:
		a.retries.Inc()
		if a.retryCount != nil {
			a.retryCount.Add(ctx, 1)
		}
	case OutcomeSuccess:
		if len(latencyMs) == 0 {
			return
		}
		a.appendSample(latencyMs[0])
		if a.latencyHist != nil {
			a.latencyHist.Record(ctx, latencyMs[0])
		}
	}
}

func (a *Aggregator) appendSample(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.window <= 0 || len(a.samples) < a.window {
		a.samples = append(a.samples, v)
		return
	}
	a.samples[a.next] = v
	a.next = (a.next + 1) % a.window
	a.full = true
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	latencies := make([]float64, 0, len(a.samples))
	if a.full {
		latencies = append(latencies, a.samples[a.next:]...)
		latencies = append(latencies, a.samples[:a.next]...)
	} else {
		latencies = append(latencies, a.samples...)
	}
	a.mu.Unlock()

	snap := Snapshot{
		Calls:       a.calls.Value(),
		Errors:      a.errors.Value(),
		Retries:     a.retries.Value(),
		LatenciesMs: latencies,
	}
	if len(latencies) == 0 {
		return snap
	}

	var sum float64
	for _, v := range latencies {
		sum += v
	}
	snap.AvgLatencyMs = sum / float64(len(latencies))

	if len(latencies) >= minPercentileSamples {
		sorted := append([]float64(nil), latencies...)
		sort.Float64s(sorted)
		p95 := sorted[int(float64(len(sorted))*0.95)]
		snap.P95LatencyMs = &p95
	}
	return snap
}

func (a *Aggregator) Export() Export {
	snap := a.Snapshot()
	return Export{
		ToolCalls:    snap.Calls,
		ToolErrors:   snap.Errors,
		ToolRetries:  snap.Retries,
		AvgLatencyMs: snap.AvgLatencyMs,
		P95LatencyMs: snap.P95LatencyMs,
	}
}

// Reset zeroes all counters and drops every latency sample.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls.Reset()
	a.errors.Reset()
	a.retries.Reset()
	a.samples = nil
	a.next = 0
	a.full = false
}
