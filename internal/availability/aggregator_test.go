package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/result"
	"github.com/teemow/calbridge/internal/retry"
	"github.com/teemow/calbridge/internal/timeutil"
)

// fakeGateway answers free/busy queries only.
type fakeGateway struct {
	calendar.Gateway
	queries []calendar.FreeBusyQuery
	reply   func(n int, q calendar.FreeBusyQuery) (calendar.Payload, error)
}

func (g *fakeGateway) QueryFreeBusy(_ context.Context, q calendar.FreeBusyQuery) (calendar.Payload, error) {
	g.queries = append(g.queries, q)
	return g.reply(len(g.queries), q)
}

type readyConn struct{}

func (readyConn) Connect(context.Context) error { return nil }
func (readyConn) IsReady() bool                 { return true }

func newTestAggregator(gw calendar.Gateway, now time.Time) *Aggregator {
	exec := retry.New(readyConn{},
		retry.WithSleeper(func(context.Context, time.Duration) error { return nil }),
		retry.WithLogger(logging.Discard()),
	)
	return NewAggregator(gw, exec,
		WithNormalizer(timeutil.NewNormalizer(timeutil.WithClock(&timeutil.FixedClock{At: now}))),
		WithLogger(logging.Discard()),
	)
}

func TestGetFreeBusy_Structured(t *testing.T) {
	gw := &fakeGateway{reply: func(int, calendar.FreeBusyQuery) (calendar.Payload, error) {
		return &calendar.StructuredPayload{FreeBusy: map[string][]calendar.BusyInterval{
			"a@example.com": {busy(14, 0, 15, 0), busy(10, 0, 11, 0)},
		}}, nil
	}}
	a := newTestAggregator(gw, day)

	got, err := a.GetFreeBusy(context.Background(), []string{"a@example.com", "b@example.com"}, window(t, 9, 17), "UTC")
	require.NoError(t, err)

	assert.Equal(t, []calendar.BusyInterval{busy(10, 0, 11, 0), busy(14, 0, 15, 0)}, got["a@example.com"])
	assert.NotNil(t, got["b@example.com"])
	assert.Empty(t, got["b@example.com"])
	require.Len(t, gw.queries, 1)
	assert.Equal(t, "UTC", gw.queries[0].TimeZone)
}

func TestGetFreeBusy_Prose(t *testing.T) {
	gw := &fakeGateway{reply: func(int, calendar.FreeBusyQuery) (calendar.Payload, error) {
		return &calendar.ProsePayload{Message: "Calendar ID: a@example.com\n" +
			"- Busy: 2025-04-07T13:00:00Z to 2025-04-07T14:00:00Z\n" +
			"- Busy: 2025-04-07T09:30:00Z to 2025-04-07T10:00:00Z\n"}, nil
	}}
	a := newTestAggregator(gw, day)

	got, err := a.GetFreeBusy(context.Background(), []string{"a@example.com"}, window(t, 9, 17), "")
	require.NoError(t, err)
	assert.Equal(t, []calendar.BusyInterval{busy(9, 30, 10, 0), busy(13, 0, 14, 0)}, got["a@example.com"])
}

func TestGetFreeBusy_Validation(t *testing.T) {
	gw := &fakeGateway{}
	a := newTestAggregator(gw, day)

	_, err := a.GetFreeBusy(context.Background(), nil, window(t, 9, 17), "")
	assert.True(t, result.IsKind(err, result.KindValidationFailed))

	_, err = a.GetFreeBusy(context.Background(), []string{"a@example.com"}, timeutil.TimeRange{}, "")
	assert.True(t, result.IsKind(err, result.KindValidationFailed))

	assert.Empty(t, gw.queries)
}

func TestGetFreeBusy_RetriesTransientFailures(t *testing.T) {
	gw := &fakeGateway{reply: func(n int, _ calendar.FreeBusyQuery) (calendar.Payload, error) {
		if n == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return &calendar.StructuredPayload{FreeBusy: map[string][]calendar.BusyInterval{}}, nil
	}}
	a := newTestAggregator(gw, day)

	_, err := a.GetFreeBusy(context.Background(), []string{"a@example.com"}, window(t, 9, 17), "")
	require.NoError(t, err)
	assert.Len(t, gw.queries, 2)
}

func TestFindAvailableSlots_MergesCalendarsAndLimits(t *testing.T) {
	gw := &fakeGateway{reply: func(int, calendar.FreeBusyQuery) (calendar.Payload, error) {
		return &calendar.StructuredPayload{FreeBusy: map[string][]calendar.BusyInterval{
			"a@example.com": {busy(10, 0, 11, 0)},
			"b@example.com": {busy(13, 0, 14, 0)},
		}}, nil
	}}
	a := newTestAggregator(gw, day)
	ids := []string{"a@example.com", "b@example.com"}

	slots, err := a.FindAvailableSlots(context.Background(), ids, window(t, 9, 17), 60, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []Slot{
		{Start: at(9, 0), End: at(10, 0), DurationMinutes: 60},
		{Start: at(11, 0), End: at(13, 0), DurationMinutes: 120},
		{Start: at(14, 0), End: at(17, 0), DurationMinutes: 180},
	}, slots)

	slots, err = a.FindAvailableSlots(context.Background(), ids, window(t, 9, 17), 60, "", 2)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestFindAvailableSlots_InvalidDurationSkipsProvider(t *testing.T) {
	gw := &fakeGateway{}
	a := newTestAggregator(gw, day)

	_, err := a.FindAvailableSlots(context.Background(), []string{"a@example.com"}, window(t, 9, 17), 0, "", 0)
	assert.True(t, result.IsKind(err, result.KindInvalidDuration))
	assert.Empty(t, gw.queries)
}

func TestFindNextSlot(t *testing.T) {
	now := at(9, 0)

	t.Run("first gap after busy block", func(t *testing.T) {
		gw := &fakeGateway{reply: func(_ int, q calendar.FreeBusyQuery) (calendar.Payload, error) {
			return &calendar.StructuredPayload{FreeBusy: map[string][]calendar.BusyInterval{
				calendar.PrimaryCalendarID: {busy(8, 0, 10, 30)},
			}}, nil
		}}
		a := newTestAggregator(gw, now)

		slot, err := a.FindNextSlot(context.Background(), "", 45, "")
		require.NoError(t, err)
		require.NotNil(t, slot)
		assert.Equal(t, at(10, 30), slot.Start)

		require.Len(t, gw.queries, 1)
		assert.Equal(t, []string{calendar.PrimaryCalendarID}, gw.queries[0].CalendarIDs)
		assert.Equal(t, now, gw.queries[0].Range.Start)
		assert.Equal(t, now.Add(NextSlotWindow), gw.queries[0].Range.End)
	})

	t.Run("none found", func(t *testing.T) {
		gw := &fakeGateway{reply: func(_ int, q calendar.FreeBusyQuery) (calendar.Payload, error) {
			return &calendar.StructuredPayload{FreeBusy: map[string][]calendar.BusyInterval{
				"cal": {{Start: q.Range.Start, End: q.Range.End}},
			}}, nil
		}}
		a := newTestAggregator(gw, now)

		slot, err := a.FindNextSlot(context.Background(), "cal", 30, "")
		require.NoError(t, err)
		assert.Nil(t, slot)
	})
}
