package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teemow/calbridge/internal/engine"
	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/logging"
)

// ServerContext holds the dependencies shared by the MCP tool handlers.
type ServerContext struct {
	ctx             context.Context
	cancel          context.CancelFunc
	engine          *engine.Engine
	instrumentation *instrumentation.Provider
	logger          *slog.Logger
	account         string
	hooks           []func(context.Context) error
	mu              sync.RWMutex
	shutdown        bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithInstrumentation attaches the process telemetry provider.
func WithInstrumentation(p *instrumentation.Provider) Option {
	return func(sc *ServerContext) { sc.instrumentation = p }
}

// WithLogger sets the logger handed to tool handlers.
func WithLogger(l *slog.Logger) Option {
	return func(sc *ServerContext) { sc.logger = l }
}

// WithAccount records the account the provider credentials belong to.
// It only ever reaches logs and metrics in hashed form.
func WithAccount(account string) Option {
	return func(sc *ServerContext) { sc.account = account }
}

// WithShutdownHook registers a function run by Shutdown, in reverse
// registration order.
func WithShutdownHook(hook func(context.Context) error) Option {
	return func(sc *ServerContext) {
		if hook != nil {
			sc.hooks = append(sc.hooks, hook)
		}
	}
}

// NewServerContext creates a new server context around an engine.
func NewServerContext(ctx context.Context, eng *engine.Engine, opts ...Option) (*ServerContext, error) {
	if eng == nil {
		return nil, errors.New("engine is required")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		engine: eng,
	}
	for _, opt := range opts {
		opt(sc)
	}
	sc.logger = logging.OrDefault(sc.logger)

	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Engine returns the calendar engine.
func (sc *ServerContext) Engine() *engine.Engine {
	return sc.engine
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Account returns the configured account, possibly empty.
func (sc *ServerContext) Account() string {
	return sc.account
}

// InstrumentationProvider returns the telemetry provider, or nil.
func (sc *ServerContext) InstrumentationProvider() *instrumentation.Provider {
	return sc.instrumentation
}

// Metrics returns the metric instruments, or nil when instrumentation is
// not configured. Metrics methods are nil-safe.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	if sc.instrumentation == nil {
		return nil
	}
	return sc.instrumentation.Metrics()
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context and runs the shutdown hooks once.
func (sc *ServerContext) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return nil
	}
	sc.shutdown = true
	hooks := sc.hooks
	sc.mu.Unlock()

	sc.cancel()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
