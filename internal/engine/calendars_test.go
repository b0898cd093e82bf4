package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calbridge/internal/availability"
	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/result"
)

func TestDeleteCalendar_PrimaryIsProtected(t *testing.T) {
	for _, id := range []string{"primary", " PRIMARY "} {
		h := newHarness()
		r := h.engine.DeleteCalendar(context.Background(), id)
		assert.Equal(t, result.KindProtectedResource, r.Error)
		assert.Zero(t, h.gateway.count(calendar.OpDeleteCalendar))
		assert.Zero(t, h.conn.connects)
	}
}

func TestDeleteCalendar(t *testing.T) {
	h := newHarness()

	r := h.engine.DeleteCalendar(context.Background(), "side@group.calendar.google.com")
	require.True(t, r.Success)
	assert.Equal(t, "side@group.calendar.google.com", h.gateway.lastArg(calendar.OpDeleteCalendar))

	r = h.engine.DeleteCalendar(context.Background(), "")
	assert.Equal(t, result.KindValidationFailed, r.Error)
}

func TestCreateAndUpdateCalendar(t *testing.T) {
	h := newHarness()
	h.gateway.on(calendar.OpCreateCalendar, func(_ int, arg any) (calendar.Payload, error) {
		d := arg.(calendar.CalendarDraft)
		return &calendar.StructuredPayload{Calendar: &calendar.CalendarInfo{ID: "c1", Summary: d.Summary, TimeZone: d.TimeZone}}, nil
	})
	h.gateway.on(calendar.OpUpdateCalendar, func(int, any) (calendar.Payload, error) {
		return &calendar.ProsePayload{Message: "Calendar: Renamed\nID: c1"}, nil
	})
	ctx := context.Background()

	r := h.engine.CreateCalendar(ctx, CalendarInput{Summary: "Side", TimeZone: "UTC"})
	require.True(t, r.Success, r.Message)
	assert.Equal(t, "c1", r.Data.ID)
	assert.Equal(t, "Calendar created: Side", r.Message)

	r = h.engine.CreateCalendar(ctx, CalendarInput{})
	assert.Equal(t, result.KindMissingField, r.Error)

	r = h.engine.UpdateCalendar(ctx, "c1", CalendarInput{Summary: "Renamed"})
	require.True(t, r.Success, r.Message)
	assert.Equal(t, "Renamed", r.Data.Summary)

	r = h.engine.UpdateCalendar(ctx, "c1", CalendarInput{})
	assert.Equal(t, result.KindValidationFailed, r.Error)
	assert.Equal(t, 1, h.gateway.count(calendar.OpUpdateCalendar))
}

func TestCurrentTime(t *testing.T) {
	h := newHarness()
	h.gateway.on(calendar.OpCurrentTime, func(int, any) (calendar.Payload, error) {
		return &calendar.ProsePayload{Message: "Current Time: 2025-05-05T08:00:00Z\nTime Zone: Asia/Tokyo"}, nil
	})

	r := h.engine.CurrentTime(context.Background(), "Asia/Tokyo")
	require.True(t, r.Success, r.Message)
	assert.Equal(t, "2025-05-05T17:00:00+09:00", r.Data.Local)
	assert.Equal(t, "Asia/Tokyo", h.gateway.lastArg(calendar.OpCurrentTime))

	r = h.engine.CurrentTime(context.Background(), "Nowhere/Land")
	assert.Equal(t, result.KindValidationFailed, r.Error)
}

func TestCurrentTime_MissingFromProse(t *testing.T) {
	h := newHarness()
	h.gateway.on(calendar.OpCurrentTime, func(int, any) (calendar.Payload, error) {
		return &calendar.ProsePayload{Message: "It is tea time."}, nil
	})

	r := h.engine.CurrentTime(context.Background(), "")
	assert.Equal(t, result.KindUpstreamError, r.Error)
}

func TestGetFreeBusy(t *testing.T) {
	h := newHarness()
	h.gateway.on(calendar.OpQueryFreeBusy, func(int, any) (calendar.Payload, error) {
		return &calendar.StructuredPayload{FreeBusy: map[string][]calendar.BusyInterval{
			"a@example.com": {
				{Start: testNow.Add(3 * time.Hour), End: testNow.Add(4 * time.Hour)},
				{Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour)},
			},
		}}, nil
	})

	r := h.engine.GetFreeBusy(context.Background(), FreeBusyRequest{
		CalendarIDs: []string{"a@example.com", " b@example.com "},
		TimeMax:     "2025-05-06T00:00:00Z",
	})
	require.True(t, r.Success, r.Message)
	assert.Equal(t, testNow, r.Data.TimeMin)
	assert.True(t, r.Data.Calendars["a@example.com"][0].Start.Before(r.Data.Calendars["a@example.com"][1].Start))
	assert.Contains(t, r.Data.Calendars, "b@example.com")

	r = h.engine.GetFreeBusy(context.Background(), FreeBusyRequest{})
	assert.Equal(t, result.KindValidationFailed, r.Error)
	assert.Equal(t, 1, h.gateway.count(calendar.OpQueryFreeBusy))
}

func TestFindAvailableSlots(t *testing.T) {
	h := newHarness()
	h.gateway.on(calendar.OpQueryFreeBusy, func(int, any) (calendar.Payload, error) {
		return &calendar.StructuredPayload{FreeBusy: map[string][]calendar.BusyInterval{
			"a@example.com": {{Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour)}},
		}}, nil
	})

	r := h.engine.FindAvailableSlots(context.Background(), SlotsRequest{
		CalendarIDs:     []string{"a@example.com"},
		TimeMin:         "2025-05-05T08:00:00Z",
		TimeMax:         "2025-05-05T12:00:00Z",
		DurationMinutes: 60,
	})
	require.True(t, r.Success, r.Message)
	assert.Equal(t, []availability.Slot{
		{Start: testNow, End: testNow.Add(time.Hour), DurationMinutes: 60},
		{Start: testNow.Add(2 * time.Hour), End: testNow.Add(4 * time.Hour), DurationMinutes: 120},
	}, r.Data.Slots)
	assert.Equal(t, 2, r.Data.Total)

	for _, d := range []int{0, -1, 1441} {
		r = h.engine.FindAvailableSlots(context.Background(), SlotsRequest{CalendarIDs: []string{"a@example.com"}, DurationMinutes: d})
		assert.Equal(t, result.KindInvalidDuration, r.Error)
	}
	assert.Equal(t, 1, h.gateway.count(calendar.OpQueryFreeBusy))
}

func TestFindNextSlot(t *testing.T) {
	h := newHarness()
	h.gateway.on(calendar.OpQueryFreeBusy, func(_ int, arg any) (calendar.Payload, error) {
		q := arg.(calendar.FreeBusyQuery)
		return &calendar.StructuredPayload{FreeBusy: map[string][]calendar.BusyInterval{
			q.CalendarIDs[0]: {{Start: q.Range.Start, End: q.Range.End}},
		}}, nil
	})

	r := h.engine.FindNextSlot(context.Background(), NextSlotRequest{DurationMinutes: 30})
	require.True(t, r.Success)
	assert.Nil(t, r.Data)
	assert.Equal(t, "No available 30 minute slot in the next 7 days", r.Message)

	q := h.gateway.lastArg(calendar.OpQueryFreeBusy).(calendar.FreeBusyQuery)
	assert.Equal(t, []string{calendar.PrimaryCalendarID}, q.CalendarIDs)
	assert.Equal(t, 7*24*time.Hour, q.Range.Duration())
}
