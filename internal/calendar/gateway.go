package calendar

import (
	"context"
)

// Operation names label metrics and spans and key the tool name table.
const (
	OpListCalendars  = "calendars.list"
	OpListEvents     = "events.list"
	OpSearchEvents   = "events.search"
	OpCreateEvent    = "events.create"
	OpUpdateEvent    = "events.update"
	OpDeleteEvent    = "events.delete"
	OpCreateCalendar = "calendars.create"
	OpUpdateCalendar = "calendars.update"
	OpDeleteCalendar = "calendars.delete"
	OpQueryFreeBusy  = "freebusy.query"
	OpListColors     = "colors.list"
	OpCurrentTime    = "time.current"
)

// Gateway issues one logical operation per call against the calendar
// provider. UpdateEvent additionally fetches the existing event to merge
// over it. Failures are classified *result.Error values for permanent
// conditions and unclassified errors for transient ones.
type Gateway interface {
	// Name labels logs and metrics ("api", "toolcall").
	Name() string

	ListCalendars(ctx context.Context) (Payload, error)
	ListEvents(ctx context.Context, q EventQuery) (Payload, error)
	SearchEvents(ctx context.Context, q EventQuery) (Payload, error)
	CreateEvent(ctx context.Context, calendarID string, d EventDraft) (Payload, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, p EventPatch) (Payload, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string, notify bool) error

	CreateCalendar(ctx context.Context, d CalendarDraft) (Payload, error)
	UpdateCalendar(ctx context.Context, calendarID string, d CalendarDraft) (Payload, error)
	DeleteCalendar(ctx context.Context, calendarID string) error

	QueryFreeBusy(ctx context.Context, q FreeBusyQuery) (Payload, error)
	ListColors(ctx context.Context) (Payload, error)
	CurrentTime(ctx context.Context, zone string) (Payload, error)
}

// SessionSource hands out the current provider session.
// *connection.Manager satisfies it.
type SessionSource[S any] interface {
	Session() (S, error)
	Invalidate()
}
