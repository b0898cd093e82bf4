package calendar

import (
	"regexp"
	"strings"
	"time"

	"github.com/teemow/calbridge/internal/timeutil"
)

// ProseGrammarVersion identifies the set of textual markers the prose
// parsers understand. Bump it whenever a marker changes.
const ProseGrammarVersion = "v1"

var (
	listPrefix   = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)
	labeledLine  = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*?):\s*(.*)$`)
	busySplitter = regexp.MustCompile(`(?i)\s+(?:to|until|-|–)\s+`)
)

// Labels, lower-cased with single spaces.
const (
	labelCalendar    = "calendar"
	labelID          = "id"
	labelTimeZone    = "time zone"
	labelAccessRole  = "access role"
	labelPrimary     = "primary"
	labelEvent       = "event"
	labelEventID     = "event id"
	labelStart       = "start"
	labelEnd         = "end"
	labelLocation    = "location"
	labelStatus      = "status"
	labelDescription = "description"
	labelAttendees   = "attendees"
	labelColorID     = "color id"
	labelLink        = "link"
	labelBackground  = "background"
	labelForeground  = "foreground"
	labelCalendarID  = "calendar id"
	labelBusy        = "busy"
	labelCurrentTime = "current time"
)

type proseField struct {
	label string
	value string
}

// block is one labeled record. Repeated labels keep every value.
type block map[string][]string

func (b block) first(label string) string {
	if v := b[label]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func scanFields(message string) []proseField {
	var fields []proseField
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(listPrefix.ReplaceAllString(line, ""))
		m := labeledLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
		fields = append(fields, proseField{label: label, value: strings.TrimSpace(m[2])})
	}
	return fields
}

// splitBlocks starts a new block at every opener label. Fields before the
// first opener are ignored.
func splitBlocks(message, opener string) []block {
	var (
		blocks  []block
		current block
	)
	for _, f := range scanFields(message) {
		if f.label == opener {
			current = block{}
			blocks = append(blocks, current)
		}
		if current == nil {
			continue
		}
		current[f.label] = append(current[f.label], f.value)
	}
	return blocks
}

// ParseCalendars recovers calendars from prose. It returns the records and
// the number of blocks dropped for lacking an ID.
func ParseCalendars(message string) ([]CalendarInfo, int) {
	calendars := []CalendarInfo{}
	dropped := 0
	for _, b := range splitBlocks(message, labelCalendar) {
		id := b.first(labelID)
		if id == "" {
			dropped++
			continue
		}
		calendars = append(calendars, CalendarInfo{
			ID:         id,
			Summary:    b.first(labelCalendar),
			TimeZone:   b.first(labelTimeZone),
			AccessRole: b.first(labelAccessRole),
			Primary:    parseFlag(b.first(labelPrimary)) || isPrimary(id),
		})
	}
	return calendars, dropped
}

// ParseEvents recovers events from prose. Event ID and a parseable Start
// are required.
func ParseEvents(message string) ([]Event, int) {
	events := []Event{}
	dropped := 0
	for _, b := range splitBlocks(message, labelEvent) {
		id := b.first(labelEventID)
		startText := b.first(labelStart)
		if id == "" || startText == "" {
			dropped++
			continue
		}
		start, err := timeutil.Parse(startText)
		if err != nil {
			dropped++
			continue
		}

		e := Event{
			ID:          id,
			Summary:     b.first(labelEvent),
			Start:       start,
			AllDay:      isDateOnly(startText),
			Location:    b.first(labelLocation),
			Status:      b.first(labelStatus),
			Description: b.first(labelDescription),
			ColorID:     b.first(labelColorID),
			HTMLLink:    b.first(labelLink),
		}
		if endText := b.first(labelEnd); endText != "" {
			if end, err := timeutil.Parse(endText); err == nil {
				e.End = end
			}
		}
		for _, email := range strings.Split(b.first(labelAttendees), ",") {
			if email = strings.TrimSpace(email); email != "" {
				e.Attendees = append(e.Attendees, Attendee{Email: email})
			}
		}
		events = append(events, e)
	}
	return events, dropped
}

// ParseColors recovers the color palette. Background is required.
func ParseColors(message string) ([]Color, int) {
	colors := []Color{}
	dropped := 0
	for _, b := range splitBlocks(message, labelColorID) {
		id := b.first(labelColorID)
		bg := b.first(labelBackground)
		if id == "" || bg == "" {
			dropped++
			continue
		}
		colors = append(colors, Color{ID: id, Background: bg, Foreground: b.first(labelForeground)})
	}
	return colors, dropped
}

// ParseFreeBusy recovers busy intervals per calendar. An unparseable or
// empty Busy entry is dropped on its own; the calendar is kept.
func ParseFreeBusy(message string) (map[string][]BusyInterval, int) {
	busy := map[string][]BusyInterval{}
	dropped := 0
	for _, b := range splitBlocks(message, labelCalendarID) {
		id := b.first(labelCalendarID)
		if id == "" {
			dropped++
			continue
		}
		intervals := busy[id]
		if intervals == nil {
			intervals = []BusyInterval{}
		}
		for _, entry := range b[labelBusy] {
			interval, ok := parseBusyEntry(entry)
			if !ok {
				dropped++
				continue
			}
			intervals = append(intervals, interval)
		}
		busy[id] = intervals
	}
	return busy, dropped
}

// ParseCurrentTime recovers the current time. It returns nil when the
// message has no Current Time label, and counts an unparseable one.
func ParseCurrentTime(message string) (*CurrentTime, int) {
	var (
		value, zone string
		found       bool
	)
	for _, f := range scanFields(message) {
		switch f.label {
		case labelCurrentTime:
			if !found {
				value, found = f.value, true
			}
		case labelTimeZone:
			if zone == "" {
				zone = f.value
			}
		}
	}
	if !found {
		return nil, 0
	}

	t, err := timeutil.Parse(value)
	if err != nil {
		return nil, 1
	}
	ct := &CurrentTime{Time: t, TimeZone: zone, Local: value}
	if loc, err := timeutil.Location(zone); err == nil {
		ct.TimeZone = loc.String()
		ct.Local = t.In(loc).Format(time.RFC3339)
	}
	return ct, 0
}

func parseBusyEntry(entry string) (BusyInterval, bool) {
	parts := busySplitter.Split(strings.TrimSpace(entry), 2)
	if len(parts) != 2 {
		return BusyInterval{}, false
	}
	start, err := timeutil.Parse(parts[0])
	if err != nil {
		return BusyInterval{}, false
	}
	end, err := timeutil.Parse(parts[1])
	if err != nil || !end.After(start) {
		return BusyInterval{}, false
	}
	return BusyInterval{Start: start, End: end}, true
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1":
		return true
	}
	return false
}

func isDateOnly(s string) bool {
	_, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	return err == nil
}
