package calendar

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/calbridge/internal/timeutil"
)

// PrimaryCalendarID is the alias of the caller's default calendar.
const PrimaryCalendarID = "primary"

// MaxResultsLimit is the largest page the provider accepts for event listings.
const MaxResultsLimit = 2500

// Event is a calendar event as returned to callers.
type Event struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end,omitzero"`
	AllDay      bool       `json:"allDay,omitempty"`
	Status      string     `json:"status,omitempty"`
	ColorID     string     `json:"colorId,omitempty"`
	Organizer   string     `json:"organizer,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	Recurrence  []string   `json:"recurrence,omitempty"`
	HTMLLink    string     `json:"htmlLink,omitempty"`
	MeetLink    string     `json:"meetLink,omitempty"`
}

// Attendee represents information about an event attendee
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"` // "needsAction", "declined", "tentative", "accepted"
	Optional       bool   `json:"optional,omitempty"`
	Organizer      bool   `json:"organizer,omitempty"`
}

// CalendarInfo represents information about a calendar
type CalendarInfo struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	TimeZone    string `json:"timeZone,omitempty"`
	Primary     bool   `json:"primary,omitempty"`
	AccessRole  string `json:"accessRole,omitempty"` // "owner", "writer", "reader", "freeBusyReader"
}

// Color is an event color identifier with its rendering.
type Color struct {
	ID         string `json:"id"`
	Background string `json:"background"`
	Foreground string `json:"foreground,omitempty"`
}

// BusyInterval is a block of unavailability on one calendar.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CurrentTime is the provider's notion of "now" in a zone.
type CurrentTime struct {
	Time     time.Time `json:"time"`
	TimeZone string    `json:"timeZone"`
	Local    string    `json:"local"`
}

// EventDraft is a new event. Summary, Start and End are required. For an
// all-day event Start and End hold their dates at midnight UTC.
type EventDraft struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	AllDay      bool
	Attendees   []string
	ColorID     string
	Recurrence  []string // RRULE, EXRULE, RDATE, EXDATE

	// AddConference requests a video conference link.
	AddConference bool
}

// EventPatch is a partial update merged over the existing event. Empty
// fields are left unchanged.
type EventPatch struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	AllDay      bool
	Attendees   []string
	ColorID     string
	Recurrence  []string
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p.Summary == "" && p.Description == "" && p.Location == "" &&
		p.Start.IsZero() && p.End.IsZero() && len(p.Attendees) == 0 &&
		p.ColorID == "" && len(p.Recurrence) == 0
}

// EventQuery selects events of one calendar inside a window.
type EventQuery struct {
	CalendarID string
	Range      timeutil.TimeRange
	Query      string
	TimeZone   string
	MaxResults int
}

// CalendarDraft describes a secondary calendar.
type CalendarDraft struct {
	Summary     string
	Description string
	TimeZone    string
}

// FreeBusyQuery asks for the busy intervals of several calendars.
type FreeBusyQuery struct {
	CalendarIDs []string
	Range       timeutil.TimeRange
	TimeZone    string
}

// ClampMaxResults bounds n to (0, MaxResultsLimit]. Zero or negative means
// the limit.
func ClampMaxResults(n int) int {
	if n <= 0 || n > MaxResultsLimit {
		return MaxResultsLimit
	}
	return n
}

// toEvent converts a Google Calendar event to an Event
func toEvent(event *calendar.Event) Event {
	e := Event{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
		ColorID:     event.ColorId,
		Recurrence:  event.Recurrence,
		HTMLLink:    event.HtmlLink,
	}

	e.Start, e.AllDay = fromEventDateTime(event.Start)
	e.End, _ = fromEventDateTime(event.End)

	if event.Organizer != nil {
		e.Organizer = event.Organizer.Email
	}

	for _, att := range event.Attendees {
		e.Attendees = append(e.Attendees, Attendee{
			Email:          att.Email,
			DisplayName:    att.DisplayName,
			ResponseStatus: att.ResponseStatus,
			Optional:       att.Optional,
			Organizer:      att.Organizer,
		})
	}

	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				e.MeetLink = ep.Uri
				break
			}
		}
	}

	return e
}

func fromEventDateTime(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return timeutil.Canonical(t), false
		}
	}
	if dt.Date != "" {
		if t, err := time.Parse(time.DateOnly, dt.Date); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func toEventDateTime(t time.Time, zone string, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.UTC().Format(time.DateOnly)}
	}
	if zone == "" {
		zone = "UTC"
	}
	return &calendar.EventDateTime{DateTime: timeutil.Format(t), TimeZone: zone}
}

func toAttendees(emails []string) []*calendar.EventAttendee {
	attendees := make([]*calendar.EventAttendee, 0, len(emails))
	for _, email := range emails {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}
	return attendees
}

// toCalendarInfo converts a Google Calendar list entry to CalendarInfo
func toCalendarInfo(entry *calendar.CalendarListEntry) CalendarInfo {
	return CalendarInfo{
		ID:          entry.Id,
		Summary:     entry.Summary,
		Description: entry.Description,
		TimeZone:    entry.TimeZone,
		Primary:     entry.Primary,
		AccessRole:  entry.AccessRole,
	}
}

func fromCalendar(cal *calendar.Calendar) CalendarInfo {
	return CalendarInfo{
		ID:          cal.Id,
		Summary:     cal.Summary,
		Description: cal.Description,
		TimeZone:    cal.TimeZone,
		AccessRole:  "owner",
	}
}

func isPrimary(calendarID string) bool {
	return strings.EqualFold(strings.TrimSpace(calendarID), PrimaryCalendarID)
}

// sortColors orders colors by numeric id, falling back to string order.
func sortColors(colors []Color) {
	slices.SortFunc(colors, func(a, b Color) int {
		ai, aerr := strconv.Atoi(a.ID)
		bi, berr := strconv.Atoi(b.ID)
		if aerr == nil && berr == nil {
			return cmp.Compare(ai, bi)
		}
		return strings.Compare(a.ID, b.ID)
	})
}
