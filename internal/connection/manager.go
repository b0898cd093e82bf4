package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/logging"
)

// ErrNotConnected is returned by Session when no session is established.
var ErrNotConnected = errors.New("provider connection is not established")

// ErrDialAbandoned is returned when Disconnect ran while a dial was in
// flight. The session it produced is closed instead of published.
var ErrDialAbandoned = errors.New("provider connection was closed while dialing")

// DefaultDialTimeout bounds a single dial.
const DefaultDialTimeout = 30 * time.Second

// Dialer establishes a new provider session.
type Dialer[S any] func(ctx context.Context) (S, error)

// Closer releases a session. It may be nil.
type Closer[S any] func(S) error

// Manager owns the single provider session of the process. Connect is
// lazy and idempotent; concurrent callers share one in-flight dial.
type Manager[S any] struct {
	name        string
	dial        Dialer[S]
	close       Closer[S]
	dialTimeout time.Duration
	logger      *slog.Logger

	metrics *instrumentation.Metrics

	group singleflight.Group

	mu      sync.RWMutex
	session S
	ready   bool
	// generation is bumped by Disconnect; a dial started under an older
	// generation must not publish its session.
	generation uint64
	// cancelSession ends the context the current session was dialed with.
	cancelSession context.CancelFunc
}

// Option configures a Manager.
type Option[S any] func(*Manager[S])

// WithCloser sets the function used to release sessions.
func WithCloser[S any](c Closer[S]) Option[S] {
	return func(m *Manager[S]) { m.close = c }
}

// WithLogger sets the logger.
func WithLogger[S any](l *slog.Logger) Option[S] {
	return func(m *Manager[S]) { m.logger = l }
}

// WithDialTimeout bounds each dial. Zero or negative keeps the default.
func WithDialTimeout[S any](d time.Duration) Option[S] {
	return func(m *Manager[S]) {
		if d > 0 {
			m.dialTimeout = d
		}
	}
}

// WithMetrics records dials.
func WithMetrics[S any](metrics *instrumentation.Metrics) Option[S] {
	return func(m *Manager[S]) { m.metrics = metrics }
}

// NewManager creates a disconnected manager. name labels logs and metrics.
func NewManager[S any](name string, dial Dialer[S], opts ...Option[S]) *Manager[S] {
	m := &Manager[S]{name: name, dial: dial, dialTimeout: DefaultDialTimeout}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.WithGateway(logging.OrDefault(m.logger), name)
	return m
}

// Name returns the label given at construction.
func (m *Manager[S]) Name() string {
	return m.name
}

// IsReady reports whether a session is established.
func (m *Manager[S]) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// Connect establishes the session if needed. It is a no-op when already
// connected. If ctx ends while a dial is in flight, Connect returns the
// context error and the dial keeps running for the other waiters. A dial
// that outlives the dial timeout is abandoned so the next Connect dials
// afresh.
func (m *Manager[S]) Connect(ctx context.Context) error {
	if m.IsReady() {
		return nil
	}

	ch := m.group.DoChan("connect", func() (any, error) {
		return nil, m.connect(ctx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type dialResult[S any] struct {
	session S
	err     error
}

func (m *Manager[S]) connect(ctx context.Context) error {
	m.mu.RLock()
	ready, generation := m.ready, m.generation
	m.mu.RUnlock()
	if ready {
		return nil
	}

	// Detached from the first caller so one canceled waiter does not fail
	// the dial for everyone sharing it. The context lives as long as the
	// session, since some transports bind their process to it.
	dialCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	start := time.Now()
	done := make(chan dialResult[S], 1)
	go func() {
		session, err := m.dial(dialCtx)
		done <- dialResult[S]{session: session, err: err}
	}()

	timer := time.NewTimer(m.dialTimeout)
	defer timer.Stop()

	var res dialResult[S]
	select {
	case res = <-done:
	case <-timer.C:
		cancel()
		go m.discardLate(done)
		err := fmt.Errorf("dial timed out after %s: %w", m.dialTimeout, context.DeadlineExceeded)
		m.metrics.RecordConnectionDial(ctx, m.name, instrumentation.StatusError)
		m.logger.Warn("provider connection failed", logging.Duration(time.Since(start)), logging.Err(err))
		return err
	}

	if res.err != nil {
		cancel()
		m.metrics.RecordConnectionDial(ctx, m.name, instrumentation.StatusError)
		m.logger.Warn("provider connection failed", logging.Duration(time.Since(start)), logging.Err(res.err))
		return res.err
	}

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		m.closeSession(res.session, cancel)
		m.logger.Info("provider connection closed while dialing, discarding session")
		return ErrDialAbandoned
	}
	m.session = res.session
	m.ready = true
	m.cancelSession = cancel
	m.mu.Unlock()

	m.metrics.RecordConnectionDial(ctx, m.name, instrumentation.StatusSuccess)
	m.logger.Info("provider connection established", logging.Duration(time.Since(start)))
	return nil
}

// discardLate closes the session of an abandoned dial should it still
// succeed.
func (m *Manager[S]) discardLate(done <-chan dialResult[S]) {
	res := <-done
	if res.err == nil {
		m.closeSession(res.session, nil)
	}
}

func (m *Manager[S]) closeSession(session S, cancel context.CancelFunc) {
	if m.close != nil {
		if err := m.close(session); err != nil {
			m.logger.Debug("closing discarded session failed", logging.Err(err))
		}
	}
	if cancel != nil {
		cancel()
	}
}

// Session returns the established session.
func (m *Manager[S]) Session() (S, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		var zero S
		return zero, ErrNotConnected
	}
	return m.session, nil
}

// Invalidate drops the current session so the next Connect dials again.
// Used when a call reveals the session is broken.
func (m *Manager[S]) Invalidate() {
	if err := m.Disconnect(); err != nil {
		m.logger.Debug("closing invalidated session failed", logging.Err(err))
	}
}

// Disconnect releases the session. It is safe to call when not connected.
// A dial in flight when Disconnect runs never publishes its session.
func (m *Manager[S]) Disconnect() error {
	m.mu.Lock()
	session, ready, cancel := m.session, m.ready, m.cancelSession
	var zero S
	m.session = zero
	m.ready = false
	m.cancelSession = nil
	m.generation++
	m.mu.Unlock()

	if !ready {
		return nil
	}
	m.logger.Info("provider connection closed")
	var err error
	if m.close != nil {
		err = m.close(session)
	}
	if cancel != nil {
		cancel()
	}
	return err
}
