package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
	metricsx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/metrics"
)

type Config struct {
	MaxRetries       int           `split_words:"true" default:"3"`
	BaseRetryDelay   time.Duration `split_words:"true" default:"500ms"`
	FailureThreshold int           `split_words:"true" default:"5"`
	ResetAfter       time.Duration `split_words:"true" default:"30s"`
	AttemptTimeout   time.Duration `split_words:"true" default:"10s"`
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		BaseRetryDelay:   500 * time.Millisecond,
		FailureThreshold: 5,
		ResetAfter:       30 * time.Second,
		AttemptTimeout:   10 * time.Second,
	}
}

// normalize replaces unusable values with defaults. A zero BaseRetryDelay is
// kept and means retries happen back to back.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.BaseRetryDelay < 0 {
		c.BaseRetryDelay = def.BaseRetryDelay
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.ResetAfter <= 0 {
		c.ResetAfter = def.ResetAfter
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = def.AttemptTimeout
	}
	return c
}

// CumulativeBackoff is the total sleep of a call that fails every attempt.
func (c Config) CumulativeBackoff() time.Duration {
	c = c.normalize()
	n := time.Duration(c.MaxRetries)
	return c.BaseRetryDelay * n * (n - 1) / 2
}

// WorstCaseLatency bounds how long Call can take before it returns.
func (c Config) WorstCaseLatency() time.Duration {
	c = c.normalize()
	return time.Duration(c.MaxRetries)*c.AttemptTimeout + c.CumulativeBackoff()
}

type Option func(*Executor)

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

func WithEndpoint(endpoint string) Option {
	return func(e *Executor) {
		e.endpoint = endpoint
	}
}

// Executor turns an unreliable remote invoke into a call with bounded retries
// guarded by a circuit breaker.
type Executor struct {
	pool     contractx.ConnPool
	metrics  *metricsx.Aggregator
	breaker  *CircuitBreaker
	cfg      Config
	endpoint string
	logger   zerolog.Logger
	now      func() time.Time
}

var _ contractx.ToolCaller = (*Executor)(nil)

func New(pool contractx.ConnPool, metrics *metricsx.Aggregator, cfg Config, opts ...Option) (*Executor, error) {
	if pool == nil {
		return nil, errors.New("connection pool is required")
	}
	if metrics == nil {
		return nil, errors.New("metrics aggregator is required")
	}

	e := &Executor{
		pool:     pool,
		metrics:  metrics,
		cfg:      cfg.normalize(),
		endpoint: "default",
		logger:   log.Logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.breaker = NewCircuitBreaker(e.endpoint, e.cfg.FailureThreshold, e.cfg.ResetAfter, e.now)
	return e, nil
}

func (e *Executor) Breaker() *CircuitBreaker {
	return e.breaker
}

func (e *Executor) Config() Config {
	return e.cfg
}

// Call never returns a Go error: every failure path resolves to a ToolResult.
func (e *Executor) Call(ctx context.Context, tool string, args map[string]any) contractx.ToolResult {
	e.metrics.Record(ctx, metricsx.OutcomeCall)

	if err := e.breaker.Allow(); err != nil {
		e.logger.Warn().Str("tool", tool).Str("endpoint", e.endpoint).Err(err).Msg("circuit_open")
		return contractx.Failure(tool, err)
	}

	req := contractx.ToolRequest{Tool: tool, Args: args}
	attempts := 0
	var lastErr error

	payload, err := backoff.Retry(ctx,
		func() (map[string]any, error) {
			attempts++
			out, err := e.attempt(ctx, req)
			if err != nil {
				lastErr = err
			}
			return out, err
		},
		backoff.WithBackOff(newLinearBackOff(e.cfg.BaseRetryDelay)),
		backoff.WithMaxTries(uint(e.cfg.MaxRetries)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			e.metrics.Record(ctx, metricsx.OutcomeRetry)
			e.logger.Warn().
				Str("tool", tool).
				Int("attempt", attempts).
				Dur("delay", delay).
				Err(err).
				Msg("mcp_tool_retry")
		}),
	)
	if err != nil && ctx.Err() != nil && attempts < e.cfg.MaxRetries {
		// Abandoned by the caller before retries ran out: not a backend failure.
		e.breaker.ReleaseProbe()
		cause := context.Cause(ctx)
		e.logger.Warn().
			Str("tool", tool).
			Int("attempts", attempts).
			Err(cause).
			Msg("mcp_tool_abandoned")
		return contractx.Failure(tool, fmt.Errorf("tool call %s abandoned after %d attempts: %w", tool, attempts, cause))
	}
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		e.metrics.Record(ctx, metricsx.OutcomeError)
		opened := e.breaker.RecordFailure()
		e.logger.Error().
			Str("tool", tool).
			Int("attempts", attempts).
			Bool("circuit_open", opened).
			Err(lastErr).
			Msg("mcp_tool_failed")
		return contractx.Failure(tool, &contractx.ExhaustedError{Tool: tool, Attempts: attempts, Err: lastErr})
	}

	e.breaker.RecordSuccess()

	if msg, ok := payload["error"].(string); ok && msg != "" {
		return contractx.ToolResult{
			Tool:   tool,
			Result: payload,
			Error:  msg,
			Err:    fmt.Errorf("%w: %s", contractx.ErrToolRejected, msg),
		}
	}
	return contractx.Success(tool, payload)
}

func (e *Executor) attempt(ctx context.Context, req contractx.ToolRequest) (map[string]any, error) {
	var out map[string]any
	err := e.pool.Do(ctx, func(conn contractx.Conn) error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		defer cancel()

		if err := conn.EnsureConnected(attemptCtx); err != nil {
			return err
		}

		start := e.now()
		payload, err := conn.Invoke(attemptCtx, req)
		if err != nil {
			return err
		}
		latency := float64(e.now().Sub(start).Microseconds()) / 1000
		e.metrics.Record(ctx, metricsx.OutcomeSuccess, latency)
		e.logger.Debug().Str("tool", req.Tool).Float64("latency_ms", latency).Msg("mcp_tool_call")

		out = payload
		return nil
	})
	return out, err
}
