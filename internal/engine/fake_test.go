package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/retry"
	"github.com/teemow/calbridge/internal/timeutil"
)

// fakeGateway records calls per operation and answers from per-operation
// hooks. An operation without a hook returns an empty structured payload.
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int
	args  map[string][]any
	hooks map[string]func(n int, arg any) (calendar.Payload, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls: map[string]int{},
		args:  map[string][]any{},
		hooks: map[string]func(int, any) (calendar.Payload, error){},
	}
}

func (g *fakeGateway) on(op string, hook func(n int, arg any) (calendar.Payload, error)) {
	g.hooks[op] = hook
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) lastArg(op string) any {
	g.mu.Lock()
	defer g.mu.Unlock()
	args := g.args[op]
	if len(args) == 0 {
		return nil
	}
	return args[len(args)-1]
}

func (g *fakeGateway) do(op string, arg any) (calendar.Payload, error) {
	g.mu.Lock()
	g.calls[op]++
	n := g.calls[op]
	g.args[op] = append(g.args[op], arg)
	hook := g.hooks[op]
	g.mu.Unlock()

	if hook == nil {
		return &calendar.StructuredPayload{}, nil
	}
	return hook(n, arg)
}

type eventWrite struct {
	CalendarID string
	EventID    string
	Draft      calendar.EventDraft
	Patch      calendar.EventPatch
	Notify     bool
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) ListCalendars(context.Context) (calendar.Payload, error) {
	return g.do(calendar.OpListCalendars, nil)
}

func (g *fakeGateway) ListEvents(_ context.Context, q calendar.EventQuery) (calendar.Payload, error) {
	return g.do(calendar.OpListEvents, q)
}

func (g *fakeGateway) SearchEvents(_ context.Context, q calendar.EventQuery) (calendar.Payload, error) {
	return g.do(calendar.OpSearchEvents, q)
}

func (g *fakeGateway) CreateEvent(_ context.Context, calendarID string, d calendar.EventDraft) (calendar.Payload, error) {
	return g.do(calendar.OpCreateEvent, eventWrite{CalendarID: calendarID, Draft: d})
}

func (g *fakeGateway) UpdateEvent(_ context.Context, calendarID, eventID string, p calendar.EventPatch) (calendar.Payload, error) {
	return g.do(calendar.OpUpdateEvent, eventWrite{CalendarID: calendarID, EventID: eventID, Patch: p})
}

func (g *fakeGateway) DeleteEvent(_ context.Context, calendarID, eventID string, notify bool) error {
	_, err := g.do(calendar.OpDeleteEvent, eventWrite{CalendarID: calendarID, EventID: eventID, Notify: notify})
	return err
}

func (g *fakeGateway) CreateCalendar(_ context.Context, d calendar.CalendarDraft) (calendar.Payload, error) {
	return g.do(calendar.OpCreateCalendar, d)
}

func (g *fakeGateway) UpdateCalendar(_ context.Context, calendarID string, d calendar.CalendarDraft) (calendar.Payload, error) {
	return g.do(calendar.OpUpdateCalendar, d)
}

func (g *fakeGateway) DeleteCalendar(_ context.Context, calendarID string) error {
	_, err := g.do(calendar.OpDeleteCalendar, calendarID)
	return err
}

func (g *fakeGateway) QueryFreeBusy(_ context.Context, q calendar.FreeBusyQuery) (calendar.Payload, error) {
	return g.do(calendar.OpQueryFreeBusy, q)
}

func (g *fakeGateway) ListColors(context.Context) (calendar.Payload, error) {
	return g.do(calendar.OpListColors, nil)
}

func (g *fakeGateway) CurrentTime(_ context.Context, zone string) (calendar.Payload, error) {
	return g.do(calendar.OpCurrentTime, zone)
}

var errDial = errors.New("dial tcp 10.0.0.1:443: connect: connection refused")

// flakyConn fails the first failures connects, or every connect when
// failures is negative.
type flakyConn struct {
	mu       sync.Mutex
	failures int
	connects int
}

func (c *flakyConn) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.failures != 0 {
		if c.failures > 0 {
			c.failures--
		}
		return errDial
	}
	return nil
}

func (c *flakyConn) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects > 0 && c.failures == 0
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

var testNow = time.Date(2025, 5, 5, 8, 0, 0, 0, time.UTC)

type harness struct {
	engine  *Engine
	gateway *fakeGateway
	conn    *flakyConn
	sleeps  *sleepRecorder
}

func newHarness(opts ...Option) *harness {
	h := &harness{gateway: newFakeGateway(), conn: &flakyConn{}, sleeps: &sleepRecorder{}}
	exec := retry.New(h.conn, retry.WithSleeper(h.sleeps.sleep), retry.WithLogger(logging.Discard()))
	base := []Option{
		WithLogger(logging.Discard()),
		WithNormalizer(timeutil.NewNormalizer(timeutil.WithClock(&timeutil.FixedClock{At: testNow}))),
	}
	h.engine = New(h.gateway, exec, append(base, opts...)...)
	return h
}
