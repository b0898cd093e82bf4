package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/result"
)

const (
	// DefaultMaxAttempts bounds every call.
	DefaultMaxAttempts = 3
	// DefaultBackoffStep is the linear backoff unit.
	DefaultBackoffStep = time.Second
)

// Readiness is the provider connection as seen by the executor.
type Readiness interface {
	Connect(ctx context.Context) error
	IsReady() bool
}

// Phase is a state of the retry state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAttempting
	PhaseRetrying
	PhaseSuccess
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAttempting:
		return "attempting"
	case PhaseRetrying:
		return "retrying"
	case PhaseSuccess:
		return "success"
	case PhaseExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is the retry state of one call. It is discarded when the call
// resolves.
type State struct {
	Phase       Phase
	Attempt     int
	MaxAttempts int
	LastErr     error
}

// Observer is notified on every phase transition.
type Observer func(operation string, s State)

// Backoff returns the delay before retry number attempt, where attempt is
// the 1-based number of the attempt that just failed.
type Backoff func(attempt int) time.Duration

// LinearBackoff returns attempt × step.
func LinearBackoff(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
}

// DefaultPolicy is three attempts with 1s, 2s delays between them.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Backoff: LinearBackoff(DefaultBackoffStep)}
}

// Executor runs provider calls inside a bounded retry loop. Every attempt
// first ensures the connection is ready.
type Executor struct {
	conn     Readiness
	policy   Policy
	sleep    Sleeper
	observer Observer
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithPolicy overrides the retry policy. Zero fields keep their defaults.
func WithPolicy(p Policy) Option {
	return func(e *Executor) {
		if p.MaxAttempts > 0 {
			e.policy.MaxAttempts = p.MaxAttempts
		}
		if p.Backoff != nil {
			e.policy.Backoff = p.Backoff
		}
	}
}

// WithSleeper replaces the delay function, typically in tests.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

// WithObserver registers a phase observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics records attempts and exhaustion.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// New creates an executor bound to conn.
func New(conn Readiness, opts ...Option) *Executor {
	e := &Executor{
		conn:   conn,
		policy: DefaultPolicy(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDefault(e.logger)
	return e
}

// Policy returns the effective policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Ready reports the connection readiness flag.
func (e *Executor) Ready() bool {
	return e.conn.IsReady()
}

// Run is Do for calls without a result value.
func (e *Executor) Run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, e, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do runs fn until it succeeds, fails permanently or the attempts are
// used up. Classified errors (see result.Retryable) are returned as is.
// Exhaustion yields RetryExhausted, or ServiceUnavailable when the last
// attempt could not connect.
func Do[T any](ctx context.Context, e *Executor, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	logger := logging.WithOperation(e.logger, operation)
	state := State{Phase: PhaseIdle, MaxAttempts: e.policy.MaxAttempts}
	e.transition(operation, &state, PhaseIdle)

	connectFailed := false
	for state.Attempt < state.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return zero, e.canceled(ctx, operation, &state, err)
		}

		state.Attempt++
		e.transition(operation, &state, PhaseAttempting)
		instrumentation.AddSpanEvent(ctx, "retry.attempt",
			attribute.Int(instrumentation.SpanAttrAttempt, state.Attempt),
			attribute.Int(instrumentation.SpanAttrMaxAttempts, state.MaxAttempts))

		var (
			value T
			err   error
		)
		connectFailed = false
		if err = e.conn.Connect(ctx); err != nil {
			connectFailed = true
			err = fmt.Errorf("connect: %w", err)
		} else {
			value, err = fn(ctx)
		}

		if err == nil {
			e.metrics.RecordRetryAttempt(ctx, operation, instrumentation.OutcomeSuccess, "")
			e.transition(operation, &state, PhaseSuccess)
			if state.Attempt > 1 {
				logger.Info("provider call recovered", logging.Attempt(state.Attempt, state.MaxAttempts))
			}
			return value, nil
		}
		state.LastErr = err

		if ctx.Err() != nil {
			e.metrics.RecordRetryAttempt(ctx, operation, instrumentation.OutcomeCanceled, "")
			return zero, e.canceled(ctx, operation, &state, ctx.Err())
		}

		if !connectFailed && !result.Retryable(err) {
			kind := string(result.KindOf(err))
			e.metrics.RecordRetryAttempt(ctx, operation, instrumentation.OutcomePermanent, kind)
			logger.Debug("provider call failed permanently",
				logging.Attempt(state.Attempt, state.MaxAttempts), logging.Kind(kind), logging.Err(err))
			e.transition(operation, &state, PhaseExhausted)
			return zero, err
		}

		outcome := instrumentation.OutcomeRetry
		if connectFailed {
			outcome = instrumentation.OutcomeConnectFailed
		}
		e.metrics.RecordRetryAttempt(ctx, operation, outcome, "")
		logger.Warn("provider attempt failed",
			logging.Attempt(state.Attempt, state.MaxAttempts), logging.Err(err))

		if state.Attempt >= state.MaxAttempts {
			break
		}

		e.transition(operation, &state, PhaseRetrying)
		if serr := e.sleep(ctx, e.policy.Backoff(state.Attempt)); serr != nil {
			return zero, e.canceled(ctx, operation, &state, serr)
		}
	}

	e.transition(operation, &state, PhaseExhausted)
	var final *result.Error
	if connectFailed {
		final = result.Wrap(result.KindServiceUnavailable, state.LastErr,
			"calendar service unavailable after %d attempts: %v", state.Attempt, state.LastErr)
	} else {
		final = result.Wrap(result.KindRetryExhausted, state.LastErr,
			"operation failed after %d attempts: %v", state.Attempt, state.LastErr)
	}
	e.metrics.RecordRetryExhausted(ctx, operation, string(final.Kind))
	logger.Error("provider call exhausted retries", logging.Kind(string(final.Kind)), logging.Err(state.LastErr))
	return zero, final
}

func (e *Executor) canceled(ctx context.Context, operation string, state *State, cause error) error {
	e.transition(operation, state, PhaseExhausted)
	e.metrics.RecordRetryExhausted(ctx, operation, string(result.KindRetryExhausted))
	msg := fmt.Sprintf("operation canceled after %d attempts: %v", state.Attempt, cause)
	if state.LastErr != nil {
		msg = fmt.Sprintf("operation canceled after %d attempts: %v (last error: %v)", state.Attempt, cause, state.LastErr)
	}
	return &result.Error{Kind: result.KindRetryExhausted, Message: msg, Err: cause}
}

func (e *Executor) transition(operation string, state *State, phase Phase) {
	state.Phase = phase
	if e.observer != nil {
		e.observer(operation, *state)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	}
}
