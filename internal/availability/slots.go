package availability

import (
	"cmp"
	"slices"
	"time"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/result"
	"github.com/teemow/calbridge/internal/timeutil"
)

// MaxSlotMinutes is the longest slot that can be requested.
const MaxSlotMinutes = 24 * 60

// Slot is a free gap of at least the requested duration.
type Slot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"durationMinutes"`
}

// ValidateDuration fails with InvalidDuration outside (0, MaxSlotMinutes].
func ValidateDuration(durationMinutes int) error {
	if durationMinutes <= 0 || durationMinutes > MaxSlotMinutes {
		return result.New(result.KindInvalidDuration,
			"duration must be between 1 and %d minutes, got %d", MaxSlotMinutes, durationMinutes)
	}
	return nil
}

// FindSlots sweeps busy from window.Start and returns every gap inside
// window that is at least durationMinutes long. Each slot is the whole gap.
// Overlapping or unsorted busy intervals are fine.
func FindSlots(busy []calendar.BusyInterval, window timeutil.TimeRange, durationMinutes int) ([]Slot, error) {
	if err := ValidateDuration(durationMinutes); err != nil {
		return nil, err
	}
	if !window.End.After(window.Start) {
		return nil, result.New(result.KindInvalidTimeRange, "search window must end after it starts")
	}

	need := time.Duration(durationMinutes) * time.Minute
	slots := []Slot{}
	cursor := window.Start

	for _, b := range SortBusy(busy) {
		if !cursor.Before(window.End) {
			break
		}
		gapEnd := b.Start
		if gapEnd.After(window.End) {
			gapEnd = window.End
		}
		if gapEnd.Sub(cursor) >= need {
			slots = append(slots, newSlot(cursor, gapEnd))
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}

	if window.End.Sub(cursor) >= need {
		slots = append(slots, newSlot(cursor, window.End))
	}
	return slots, nil
}

func newSlot(start, end time.Time) Slot {
	return Slot{Start: start, End: end, DurationMinutes: int(end.Sub(start) / time.Minute)}
}

// SortBusy returns a copy of busy stably sorted by start.
func SortBusy(busy []calendar.BusyInterval) []calendar.BusyInterval {
	out := slices.Clone(busy)
	if out == nil {
		out = []calendar.BusyInterval{}
	}
	slices.SortStableFunc(out, func(a, b calendar.BusyInterval) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// MergeBusy concatenates the lists of every calendar, in calendar id
// order, and stable-sorts the result by start.
func MergeBusy(perCalendar map[string][]calendar.BusyInterval) []calendar.BusyInterval {
	ids := make([]string, 0, len(perCalendar))
	for id := range perCalendar {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, cmp.Compare[string])

	var all []calendar.BusyInterval
	for _, id := range ids {
		all = append(all, perCalendar[id]...)
	}
	return SortBusy(all)
}
