package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	auditx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/audit"
	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
	executorx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/executor"
	metricsx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/metrics"
	toolx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/tool"
	transportx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/transport"
)

const defaultEndpoint = "dental-tools"

type Config struct {
	Executor  executorx.Config
	Transport transportx.Config
	Metrics   metricsx.Config
}

func DefaultConfig() Config {
	return Config{
		Executor:  executorx.DefaultConfig(),
		Transport: transportx.Config{PoolSize: 1, TerminateDuration: 5 * time.Second},
		Metrics:   metricsx.Config{Window: metricsx.DefaultWindow},
	}
}

// WorstCaseLatency is the longest a single Call can take, for callers that
// need to pick a turn deadline.
func (c Config) WorstCaseLatency() time.Duration {
	return c.Executor.WorstCaseLatency()
}

type Option func(*Runtime)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

func WithAuditStore(store auditx.Store) Option {
	return func(r *Runtime) {
		if store != nil {
			r.audit = store
		}
	}
}

func WithMeter(meter metric.Meter) Option {
	return func(r *Runtime) {
		r.meter = meter
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.now = now
		}
	}
}

func WithEndpoint(endpoint string) Option {
	return func(r *Runtime) {
		if endpoint != "" {
			r.endpoint = endpoint
		}
	}
}

// Runtime owns every piece of mutable state behind a tool call: the session
// pool, breaker, metrics and audit store. Independent runtimes share nothing.
type Runtime struct {
	pool      *transportx.Pool
	metrics   *metricsx.Aggregator
	executor  *executorx.Executor
	validator *toolx.Validator
	audit     auditx.Store

	cfg      Config
	endpoint string
	meter    metric.Meter
	logger   zerolog.Logger
	now      func() time.Time
}

var _ contractx.ToolCaller = (*Runtime)(nil)

func New(connect transportx.Connector, cfg Config, opts ...Option) (*Runtime, error) {
	if connect == nil {
		return nil, errors.New("transport connector is required")
	}

	r := &Runtime{
		cfg:      cfg,
		endpoint: defaultEndpoint,
		logger:   log.Logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.audit == nil {
		r.audit = auditx.NewMemoryStore()
	}

	var metricOpts []metricsx.Option
	if r.meter != nil {
		metricOpts = append(metricOpts, metricsx.WithMeter(r.meter))
	}
	metrics, err := metricsx.New(cfg.Metrics, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("create metrics aggregator: %w", err)
	}

	validator, err := toolx.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("create tool validator: %w", err)
	}

	pool := transportx.NewPool(r.endpoint, cfg.Transport.PoolSize, connect, transportx.WithLogger(r.logger))
	exec, err := executorx.New(pool, metrics, cfg.Executor,
		executorx.WithLogger(r.logger),
		executorx.WithClock(r.now),
		executorx.WithEndpoint(r.endpoint),
	)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("create executor: %w", err), pool.Close())
	}

	r.pool = pool
	r.metrics = metrics
	r.validator = validator
	r.executor = exec
	r.cfg.Executor = exec.Config()
	return r, nil
}

// Connect opens one session up front so the first tool call does not pay
// for process start-up.
func (r *Runtime) Connect(ctx context.Context) error {
	return r.pool.Do(ctx, func(c contractx.Conn) error {
		return c.EnsureConnected(ctx)
	})
}

// Call rejects unknown tools and malformed arguments locally; everything else
// goes through the executor.
func (r *Runtime) Call(ctx context.Context, name string, args map[string]any) contractx.ToolResult {
	if !toolx.Known(name) {
		r.logger.Warn().Str("tool", name).Msg("unknown_tool")
		return contractx.ToolResult{
			Tool:  name,
			Error: fmt.Sprintf("Unknown tool: %s", name),
			Err:   fmt.Errorf("%w: %s", contractx.ErrUnknownTool, name),
		}
	}
	if err := r.validator.Validate(name, args); err != nil {
		r.logger.Warn().Str("tool", name).Err(err).Msg("tool_args_invalid")
		return contractx.Failure(name, err)
	}
	return r.executor.Call(ctx, name, args)
}

func (r *Runtime) Metrics() metricsx.Export {
	return r.metrics.Export()
}

func (r *Runtime) Aggregator() *metricsx.Aggregator {
	return r.metrics
}

func (r *Runtime) Breaker() *executorx.CircuitBreaker {
	return r.executor.Breaker()
}

func (r *Runtime) Config() Config {
	return r.cfg
}

func (r *Runtime) AuditStore() auditx.Store {
	return r.audit
}

// BeginCall opens the audit scope of one voice call.
func (r *Runtime) BeginCall(promptVersion string, opts ...auditx.RecorderOption) *Call {
	rec := auditx.NewRecorder(promptVersion, append([]auditx.RecorderOption{auditx.WithClock(r.now)}, opts...)...)
	r.logger.Info().Str("call_id", rec.CallID()).Str("prompt_version", promptVersion).Msg("call_started")
	return &Call{rt: r, rec: rec}
}

// Close releases every pooled session.
func (r *Runtime) Close() error {
	return r.pool.Close()
}
