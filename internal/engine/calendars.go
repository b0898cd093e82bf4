package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/format"
	"github.com/teemow/calbridge/internal/input"
	"github.com/teemow/calbridge/internal/result"
)

// CreateCalendar creates a secondary calendar.
func (e *Engine) CreateCalendar(ctx context.Context, in CalendarInput) result.Result[*calendar.CalendarInfo] {
	return run(ctx, e, calendar.OpCreateCalendar, func(ctx context.Context) (*calendar.CalendarInfo, string, error) {
		summary, err := input.Sanitize(in.Summary, "summary", true)
		if err != nil {
			return nil, "", err
		}
		zone, err := e.validZone(in.TimeZone)
		if err != nil {
			return nil, "", err
		}
		draft := calendar.CalendarDraft{Summary: summary, Description: strings.TrimSpace(in.Description), TimeZone: zone}

		s, err := callStructured(ctx, e, calendar.OpCreateCalendar, format.KindCalendar, func(ctx context.Context) (calendar.Payload, error) {
			return e.gateway.CreateCalendar(ctx, draft)
		})
		if err != nil {
			return nil, "", err
		}
		return firstCalendar(s, "Calendar created")
	})
}

// UpdateCalendar changes the metadata of a calendar.
func (e *Engine) UpdateCalendar(ctx context.Context, calendarID string, in CalendarInput) result.Result[*calendar.CalendarInfo] {
	return run(ctx, e, calendar.OpUpdateCalendar, func(ctx context.Context) (*calendar.CalendarInfo, string, error) {
		id, err := requireID(calendarID, "calendarId", "update a calendar")
		if err != nil {
			return nil, "", err
		}
		zone, err := e.validZone(in.TimeZone)
		if err != nil {
			return nil, "", err
		}
		draft := calendar.CalendarDraft{
			Summary:     strings.TrimSpace(in.Summary),
			Description: strings.TrimSpace(in.Description),
			TimeZone:    zone,
		}
		if draft == (calendar.CalendarDraft{}) {
			return nil, "", result.New(result.KindValidationFailed, "no fields to update")
		}

		s, err := callStructured(ctx, e, calendar.OpUpdateCalendar, format.KindCalendar, func(ctx context.Context) (calendar.Payload, error) {
			return e.gateway.UpdateCalendar(ctx, id, draft)
		})
		if err != nil {
			return nil, "", err
		}
		return firstCalendar(s, "Calendar updated")
	})
}

// DeleteCalendar deletes a secondary calendar. The primary calendar is
// protected and never sent upstream.
func (e *Engine) DeleteCalendar(ctx context.Context, calendarID string) result.Result[string] {
	return run(ctx, e, calendar.OpDeleteCalendar, func(ctx context.Context) (string, string, error) {
		id, err := requireID(calendarID, "calendarId", "delete a calendar")
		if err != nil {
			return "", "", err
		}
		if strings.EqualFold(id, calendar.PrimaryCalendarID) {
			return "", "", result.New(result.KindProtectedResource, "the primary calendar cannot be deleted")
		}

		err = e.executor.Run(ctx, calendar.OpDeleteCalendar, func(ctx context.Context) error {
			return e.gateway.DeleteCalendar(ctx, id)
		})
		if err != nil {
			return "", "", err
		}
		return id, fmt.Sprintf("Calendar %s deleted", id), nil
	})
}

// ListColors lists the event color palette.
func (e *Engine) ListColors(ctx context.Context) result.Result[*format.Structured] {
	return run(ctx, e, calendar.OpListColors, func(ctx context.Context) (*format.Structured, string, error) {
		s, err := callStructured(ctx, e, calendar.OpListColors, format.KindColors, e.gateway.ListColors)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("Found %d colors", s.Total()), nil
	})
}

// CurrentTime reports the current time in zone, or in the account's zone
// when empty.
func (e *Engine) CurrentTime(ctx context.Context, zone string) result.Result[*calendar.CurrentTime] {
	return run(ctx, e, calendar.OpCurrentTime, func(ctx context.Context) (*calendar.CurrentTime, string, error) {
		z, err := e.validZone(zone)
		if err != nil {
			return nil, "", err
		}

		s, err := callStructured(ctx, e, calendar.OpCurrentTime, format.KindCurrentTime, func(ctx context.Context) (calendar.Payload, error) {
			return e.gateway.CurrentTime(ctx, z)
		})
		if err != nil {
			return nil, "", err
		}
		if s.CurrentTime == nil {
			return nil, "", result.New(result.KindUpstreamError, "provider response did not include the current time")
		}
		return s.CurrentTime, fmt.Sprintf("Current time in %s is %s", s.CurrentTime.TimeZone, s.CurrentTime.Local), nil
	})
}

func firstCalendar(s *format.Structured, fallback string) (*calendar.CalendarInfo, string, error) {
	if len(s.Calendars) == 0 {
		message := fallback
		if m := strings.TrimSpace(s.Message); m != "" {
			message = m
		}
		return nil, message, nil
	}
	info := s.Calendars[0]
	return &info, fmt.Sprintf("%s: %s", fallback, info.Summary), nil
}
