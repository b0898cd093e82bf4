package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/calbridge/internal/availability"
	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/format"
	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/result"
	"github.com/teemow/calbridge/internal/retry"
	"github.com/teemow/calbridge/internal/timeutil"
)

// Config tunes the engine.
type Config struct {
	// OperationTimeout bounds a whole operation including retries. Zero
	// disables it.
	OperationTimeout time.Duration
	// DefaultTimeZone is used when a request names none.
	DefaultTimeZone string
}

// Engine exposes the calendar operations. Every operation validates its
// input before touching the provider and reports a result.Result.
type Engine struct {
	gateway    calendar.Gateway
	executor   *retry.Executor
	formatter  *format.Formatter
	normalizer *timeutil.Normalizer
	planner    *availability.Aggregator
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	cfg        Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithNormalizer sets the time normalizer.
func WithNormalizer(n *timeutil.Normalizer) Option {
	return func(e *Engine) { e.normalizer = n }
}

// WithFormatter sets the response formatter.
func WithFormatter(f *format.Formatter) Option {
	return func(e *Engine) { e.formatter = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics used by the default formatter.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine issuing calls to gateway through executor.
func New(gateway calendar.Gateway, executor *retry.Executor, opts ...Option) *Engine {
	e := &Engine{gateway: gateway, executor: executor}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.WithGateway(logging.OrDefault(e.logger), gateway.Name())
	if e.normalizer == nil {
		e.normalizer = timeutil.NewNormalizer()
	}
	if e.formatter == nil {
		e.formatter = format.New(format.WithLogger(e.logger), format.WithMetrics(e.metrics))
	}
	e.planner = availability.NewAggregator(gateway, executor,
		availability.WithFormatter(e.formatter),
		availability.WithNormalizer(e.normalizer),
		availability.WithLogger(e.logger),
	)
	return e
}

// Ready reports whether the provider connection is established.
func (e *Engine) Ready() bool {
	return e.executor.Ready()
}

// GatewayName names the provider path in use.
func (e *Engine) GatewayName() string {
	return e.gateway.Name()
}

func (e *Engine) zone(zone string) string {
	if zone == "" {
		return e.cfg.DefaultTimeZone
	}
	return zone
}

// run wraps one operation in a span, the configured timeout and a log line.
func run[T any](ctx context.Context, e *Engine, op string, fn func(ctx context.Context) (T, string, error)) result.Result[T] {
	return runWithTimeout(ctx, e, op, e.cfg.OperationTimeout, fn)
}

// runBatch is run without a timeout of its own; each item is bounded.
func runBatch[T any](ctx context.Context, e *Engine, op string, fn func(ctx context.Context) (T, string, error)) result.Result[T] {
	return runWithTimeout(ctx, e, op, 0, fn)
}

func runWithTimeout[T any](ctx context.Context, e *Engine, op string, timeout time.Duration, fn func(ctx context.Context) (T, string, error)) result.Result[T] {
	ctx, span := instrumentation.StartOperationSpan(ctx, op)
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	data, message, err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		kind := result.KindOf(err)
		instrumentation.SetSpanError(span, err)
		level := slog.LevelWarn
		if result.IsInputError(kind) {
			level = slog.LevelDebug
		}
		e.logger.Log(ctx, level, "operation failed",
			logging.Operation(op), logging.Kind(string(kind)), logging.Duration(duration), logging.Err(err))
		return result.Fail[T](err)
	}

	instrumentation.SetSpanSuccess(span)
	e.logger.Debug("operation completed", logging.Operation(op), logging.Duration(duration))
	return result.Ok(data, message)
}

// call sends one gateway call through the retry executor.
func call(ctx context.Context, e *Engine, op string, fn func(ctx context.Context) (calendar.Payload, error)) (calendar.Payload, error) {
	return retry.Do(ctx, e.executor, op, fn)
}

// callStructured sends one call and formats its payload as kind.
func callStructured(ctx context.Context, e *Engine, op string, kind format.Kind, fn func(ctx context.Context) (calendar.Payload, error)) (*format.Structured, error) {
	payload, err := call(ctx, e, op, fn)
	if err != nil {
		return nil, err
	}
	return e.formatter.Format(ctx, payload, kind)
}
