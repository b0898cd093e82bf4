package engine

import (
	"time"

	"github.com/teemow/calbridge/internal/availability"
	"github.com/teemow/calbridge/internal/calendar"
)

// EventsRequest lists or searches events. Empty bounds take the default
// window starting now.
type EventsRequest struct {
	CalendarID string
	TimeMin    string
	TimeMax    string
	Query      string
	TimeZone   string
	MaxResults int
}

// EventInput describes an event to create.
type EventInput struct {
	CalendarID    string
	Summary       string
	Description   string
	Location      string
	Start         string
	End           string
	TimeZone      string
	AllDay        bool
	Attendees     []string
	ColorID       string
	Recurrence    []string
	AddConference bool
}

// UpdateEventRequest changes the non-empty fields of an existing event.
type UpdateEventRequest struct {
	CalendarID  string
	EventID     string
	Summary     string
	Description string
	Location    string
	Start       string
	End         string
	TimeZone    string
	AllDay      bool
	Attendees   []string
	ColorID     string
	Recurrence  []string
}

// DeleteEventRequest removes one event.
type DeleteEventRequest struct {
	CalendarID string
	EventID    string
	// Notify sends cancellation emails to attendees.
	Notify bool
}

// CalendarInput describes a secondary calendar.
type CalendarInput struct {
	Summary     string
	Description string
	TimeZone    string
}

// FreeBusyRequest asks for the busy time of several calendars.
type FreeBusyRequest struct {
	CalendarIDs []string
	TimeMin     string
	TimeMax     string
	TimeZone    string
}

// SlotsRequest looks for free time common to several calendars.
type SlotsRequest struct {
	CalendarIDs     []string
	TimeMin         string
	TimeMax         string
	DurationMinutes int
	TimeZone        string
	// Limit caps the number of slots returned. Zero means no cap.
	Limit int
}

// NextSlotRequest looks for the first free slot in the coming week.
type NextSlotRequest struct {
	CalendarID      string
	DurationMinutes int
	TimeZone        string
}

// FreeBusy is the per-calendar busy time of a window.
type FreeBusy struct {
	TimeMin   time.Time                          `json:"timeMin"`
	TimeMax   time.Time                          `json:"timeMax"`
	Calendars map[string][]calendar.BusyInterval `json:"calendars"`
}

// SlotList is the result of a slot search.
type SlotList struct {
	DurationMinutes int                 `json:"durationMinutes"`
	TimeMin         time.Time           `json:"timeMin"`
	TimeMax         time.Time           `json:"timeMax"`
	Slots           []availability.Slot `json:"slots"`
	Total           int                 `json:"total"`
}
