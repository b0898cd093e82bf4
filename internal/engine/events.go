package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/format"
	"github.com/teemow/calbridge/internal/input"
	"github.com/teemow/calbridge/internal/result"
	"github.com/teemow/calbridge/internal/timeutil"
	"github.com/teemow/calbridge/internal/tools/batch"
)

// ListCalendars lists the calendars the account can see.
func (e *Engine) ListCalendars(ctx context.Context) result.Result[*format.Structured] {
	return run(ctx, e, calendar.OpListCalendars, func(ctx context.Context) (*format.Structured, string, error) {
		s, err := callStructured(ctx, e, calendar.OpListCalendars, format.KindCalendars, e.gateway.ListCalendars)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("Found %d calendars", s.Total()), nil
	})
}

// ListEvents lists events in a window, by default the coming week.
func (e *Engine) ListEvents(ctx context.Context, req EventsRequest) result.Result[*format.Structured] {
	return e.events(ctx, calendar.OpListEvents, req, timeutil.SpanList)
}

// SearchEvents finds events matching a free-text query, by default in the
// coming 30 days.
func (e *Engine) SearchEvents(ctx context.Context, req EventsRequest) result.Result[*format.Structured] {
	return e.events(ctx, calendar.OpSearchEvents, req, timeutil.SpanSearch)
}

func (e *Engine) events(ctx context.Context, op string, req EventsRequest, span timeutil.Span) result.Result[*format.Structured] {
	return run(ctx, e, op, func(ctx context.Context) (*format.Structured, string, error) {
		q, err := e.eventQuery(req, span)
		if err != nil {
			return nil, "", err
		}
		if span == timeutil.SpanSearch && q.Query == "" {
			return nil, "", result.MissingField("query")
		}

		s, err := callStructured(ctx, e, op, format.KindEvents, func(ctx context.Context) (calendar.Payload, error) {
			if span == timeutil.SpanSearch {
				return e.gateway.SearchEvents(ctx, q)
			}
			return e.gateway.ListEvents(ctx, q)
		})
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("Found %d events", s.Total()), nil
	})
}

func (e *Engine) eventQuery(req EventsRequest, span timeutil.Span) (calendar.EventQuery, error) {
	calendarID, err := calendarOrPrimary(req.CalendarID)
	if err != nil {
		return calendar.EventQuery{}, err
	}
	query, err := input.Sanitize(req.Query, "query", false)
	if err != nil {
		return calendar.EventQuery{}, err
	}
	window, err := e.normalizer.NormalizeRange(req.TimeMin, req.TimeMax, span)
	if err != nil {
		return calendar.EventQuery{}, err
	}
	zone, err := e.validZone(req.TimeZone)
	if err != nil {
		return calendar.EventQuery{}, err
	}
	return calendar.EventQuery{
		CalendarID: calendarID,
		Range:      window,
		Query:      query,
		TimeZone:   zone,
		MaxResults: calendar.ClampMaxResults(req.MaxResults),
	}, nil
}

// CreateEvent creates one event. Summary, start and end are required and
// attendees must be valid email addresses.
func (e *Engine) CreateEvent(ctx context.Context, in EventInput) result.Result[*calendar.Event] {
	return run(ctx, e, calendar.OpCreateEvent, func(ctx context.Context) (*calendar.Event, string, error) {
		return e.createEvent(ctx, in)
	})
}

func (e *Engine) createEvent(ctx context.Context, in EventInput) (*calendar.Event, string, error) {
	calendarID, err := calendarOrPrimary(in.CalendarID)
	if err != nil {
		return nil, "", err
	}
	draft, err := e.eventDraft(in)
	if err != nil {
		return nil, "", err
	}

	s, err := callStructured(ctx, e, calendar.OpCreateEvent, format.KindEvent, func(ctx context.Context) (calendar.Payload, error) {
		return e.gateway.CreateEvent(ctx, calendarID, draft)
	})
	if err != nil {
		return nil, "", err
	}
	return firstEvent(s, "Event created")
}

func (e *Engine) eventDraft(in EventInput) (calendar.EventDraft, error) {
	summary, err := input.Sanitize(in.Summary, "summary", true)
	if err != nil {
		return calendar.EventDraft{}, err
	}
	startText := strings.TrimSpace(in.Start)
	endText := strings.TrimSpace(in.End)
	if startText == "" || endText == "" {
		return calendar.EventDraft{}, result.New(result.KindValidationFailed, "start and end are required to create an event")
	}
	start, err := e.eventTime(startText, in.AllDay)
	if err != nil {
		return calendar.EventDraft{}, err
	}
	end, err := e.eventTime(endText, in.AllDay)
	if err != nil {
		return calendar.EventDraft{}, err
	}
	if _, err := timeutil.NewRange(start, end); err != nil {
		return calendar.EventDraft{}, err
	}
	attendees, err := attendeeList(in.Attendees)
	if err != nil {
		return calendar.EventDraft{}, err
	}
	zone, err := e.validZone(in.TimeZone)
	if err != nil {
		return calendar.EventDraft{}, err
	}

	return calendar.EventDraft{
		Summary:       summary,
		Description:   strings.TrimSpace(in.Description),
		Location:      strings.TrimSpace(in.Location),
		Start:         start,
		End:           end,
		TimeZone:      zone,
		AllDay:        in.AllDay,
		Attendees:     attendees,
		ColorID:       strings.TrimSpace(in.ColorID),
		Recurrence:    in.Recurrence,
		AddConference: in.AddConference,
	}, nil
}

// CreateEvents creates every event in order. Individual failures are
// reported per item; only an empty batch fails as a whole.
func (e *Engine) CreateEvents(ctx context.Context, inputs []EventInput) result.Result[batch.Outcome[*calendar.Event]] {
	return runBatch(ctx, e, "events.create_batch", func(ctx context.Context) (batch.Outcome[*calendar.Event], string, error) {
		if len(inputs) == 0 {
			return batch.Outcome[*calendar.Event]{}, "", result.New(result.KindValidationFailed, "at least one event is required")
		}
		out := batch.Process(ctx, inputs, nil, func(ctx context.Context, in EventInput) result.Result[*calendar.Event] {
			return e.CreateEvent(ctx, in)
		})
		return out, fmt.Sprintf("Created %d of %d events", out.SuccessCount, out.Total), nil
	})
}

// UpdateEvent merges the non-empty fields of req over an existing event.
func (e *Engine) UpdateEvent(ctx context.Context, req UpdateEventRequest) result.Result[*calendar.Event] {
	return run(ctx, e, calendar.OpUpdateEvent, func(ctx context.Context) (*calendar.Event, string, error) {
		calendarID, err := calendarOrPrimary(req.CalendarID)
		if err != nil {
			return nil, "", err
		}
		eventID, err := requireID(req.EventID, "eventId", "update an event")
		if err != nil {
			return nil, "", err
		}
		patch, err := e.eventPatch(req)
		if err != nil {
			return nil, "", err
		}

		s, err := callStructured(ctx, e, calendar.OpUpdateEvent, format.KindEvent, func(ctx context.Context) (calendar.Payload, error) {
			return e.gateway.UpdateEvent(ctx, calendarID, eventID, patch)
		})
		if err != nil {
			return nil, "", err
		}
		return firstEvent(s, "Event updated")
	})
}

func (e *Engine) eventPatch(req UpdateEventRequest) (calendar.EventPatch, error) {
	patch := calendar.EventPatch{
		Summary:     strings.TrimSpace(req.Summary),
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		AllDay:      req.AllDay,
		ColorID:     strings.TrimSpace(req.ColorID),
		Recurrence:  req.Recurrence,
	}

	var err error
	if s := strings.TrimSpace(req.Start); s != "" {
		if patch.Start, err = e.eventTime(s, req.AllDay); err != nil {
			return calendar.EventPatch{}, err
		}
	}
	if s := strings.TrimSpace(req.End); s != "" {
		if patch.End, err = e.eventTime(s, req.AllDay); err != nil {
			return calendar.EventPatch{}, err
		}
	}
	if !patch.Start.IsZero() && !patch.End.IsZero() {
		if _, err := timeutil.NewRange(patch.Start, patch.End); err != nil {
			return calendar.EventPatch{}, err
		}
	}
	if patch.Attendees, err = attendeeList(req.Attendees); err != nil {
		return calendar.EventPatch{}, err
	}
	if patch.TimeZone, err = e.validZone(req.TimeZone); err != nil {
		return calendar.EventPatch{}, err
	}

	if patch.IsEmpty() {
		return calendar.EventPatch{}, result.New(result.KindValidationFailed, "no fields to update")
	}
	return patch, nil
}

// DeleteEvent removes one event. The event id is required.
func (e *Engine) DeleteEvent(ctx context.Context, req DeleteEventRequest) result.Result[string] {
	return run(ctx, e, calendar.OpDeleteEvent, func(ctx context.Context) (string, string, error) {
		return e.deleteEvent(ctx, req)
	})
}

func (e *Engine) deleteEvent(ctx context.Context, req DeleteEventRequest) (string, string, error) {
	calendarID, err := calendarOrPrimary(req.CalendarID)
	if err != nil {
		return "", "", err
	}
	eventID, err := requireID(req.EventID, "eventId", "delete an event")
	if err != nil {
		return "", "", err
	}

	err = e.executor.Run(ctx, calendar.OpDeleteEvent, func(ctx context.Context) error {
		return e.gateway.DeleteEvent(ctx, calendarID, eventID, req.Notify)
	})
	if err != nil {
		return "", "", err
	}
	return eventID, fmt.Sprintf("Event %s deleted", eventID), nil
}

// DeleteEvents removes every event id in order and reports each.
func (e *Engine) DeleteEvents(ctx context.Context, calendarID string, eventIDs []string, notify bool) result.Result[batch.Outcome[string]] {
	return runBatch(ctx, e, "events.delete_batch", func(ctx context.Context) (batch.Outcome[string], string, error) {
		if len(eventIDs) == 0 {
			return batch.Outcome[string]{}, "", result.New(result.KindValidationFailed, "at least one event id is required")
		}
		out := batch.Process(ctx, eventIDs, func(id string) string { return id },
			func(ctx context.Context, id string) result.Result[string] {
				return e.DeleteEvent(ctx, DeleteEventRequest{CalendarID: calendarID, EventID: id, Notify: notify})
			})
		return out, fmt.Sprintf("Deleted %d of %d events", out.SuccessCount, out.Total), nil
	})
}

func firstEvent(s *format.Structured, fallback string) (*calendar.Event, string, error) {
	message := fallback
	if len(s.Events) == 0 {
		// Prose without an event block still means the write went through.
		if m := strings.TrimSpace(s.Message); m != "" {
			message = m
		}
		return nil, message, nil
	}
	ev := s.Events[0]
	if ev.Summary != "" {
		message = fmt.Sprintf("%s: %s", fallback, ev.Summary)
	}
	return &ev, message, nil
}

func calendarOrPrimary(id string) (string, error) {
	id, err := input.Sanitize(id, "calendarId", false)
	if err != nil {
		return "", err
	}
	if id == "" {
		return calendar.PrimaryCalendarID, nil
	}
	return id, nil
}

// requireID reports a missing id as ValidationFailed.
func requireID(id, field, action string) (string, error) {
	id, err := input.Sanitize(id, field, false)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &result.Error{
			Kind:    result.KindValidationFailed,
			Field:   field,
			Message: fmt.Sprintf("%s is required to %s", field, action),
		}
	}
	return id, nil
}

func attendeeList(attendees []string) ([]string, error) {
	list, err := input.SplitList(attendees, "attendees")
	if err != nil {
		return nil, err
	}
	if err := input.ValidateAttendees(list); err != nil {
		return nil, err
	}
	return list, nil
}

// eventTime normalizes an event bound. All-day bounds keep the date as
// written, at midnight UTC, so an offset cannot move them to another day.
func (e *Engine) eventTime(s string, allDay bool) (time.Time, error) {
	if allDay {
		return timeutil.ParseDate(s)
	}
	return e.normalizer.Normalize(s)
}

func (e *Engine) validZone(zone string) (string, error) {
	zone = strings.TrimSpace(e.zone(zone))
	if zone == "" {
		return "", nil
	}
	if _, err := timeutil.Location(zone); err != nil {
		return "", err
	}
	return zone, nil
}
