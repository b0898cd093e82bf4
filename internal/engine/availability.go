package engine

import (
	"context"
	"fmt"

	"github.com/teemow/calbridge/internal/availability"
	"github.com/teemow/calbridge/internal/input"
	"github.com/teemow/calbridge/internal/result"
	"github.com/teemow/calbridge/internal/timeutil"
)

// GetFreeBusy returns the busy time of each calendar, sorted by start.
func (e *Engine) GetFreeBusy(ctx context.Context, req FreeBusyRequest) result.Result[FreeBusy] {
	return run(ctx, e, "freebusy.get", func(ctx context.Context) (FreeBusy, string, error) {
		ids, window, zone, err := e.availabilityInput(req.CalendarIDs, req.TimeMin, req.TimeMax, req.TimeZone)
		if err != nil {
			return FreeBusy{}, "", err
		}

		busy, err := e.planner.GetFreeBusy(ctx, ids, window, zone)
		if err != nil {
			return FreeBusy{}, "", err
		}
		return FreeBusy{TimeMin: window.Start, TimeMax: window.End, Calendars: busy},
			fmt.Sprintf("Free/busy for %d calendars", len(busy)), nil
	})
}

// FindAvailableSlots returns the free gaps shared by every calendar.
func (e *Engine) FindAvailableSlots(ctx context.Context, req SlotsRequest) result.Result[SlotList] {
	return run(ctx, e, "slots.find", func(ctx context.Context) (SlotList, string, error) {
		if err := availability.ValidateDuration(req.DurationMinutes); err != nil {
			return SlotList{}, "", err
		}
		ids, window, zone, err := e.availabilityInput(req.CalendarIDs, req.TimeMin, req.TimeMax, req.TimeZone)
		if err != nil {
			return SlotList{}, "", err
		}

		slots, err := e.planner.FindAvailableSlots(ctx, ids, window, req.DurationMinutes, zone, req.Limit)
		if err != nil {
			return SlotList{}, "", err
		}
		list := SlotList{
			DurationMinutes: req.DurationMinutes,
			TimeMin:         window.Start,
			TimeMax:         window.End,
			Slots:           slots,
			Total:           len(slots),
		}
		return list, fmt.Sprintf("Found %d available slots of at least %d minutes", len(slots), req.DurationMinutes), nil
	})
}

// FindNextSlot returns the first free slot of the coming week. Finding
// none is a success with nil data.
func (e *Engine) FindNextSlot(ctx context.Context, req NextSlotRequest) result.Result[*availability.Slot] {
	return run(ctx, e, "slots.next", func(ctx context.Context) (*availability.Slot, string, error) {
		if err := availability.ValidateDuration(req.DurationMinutes); err != nil {
			return nil, "", err
		}
		calendarID, err := calendarOrPrimary(req.CalendarID)
		if err != nil {
			return nil, "", err
		}
		zone, err := e.validZone(req.TimeZone)
		if err != nil {
			return nil, "", err
		}

		slot, err := e.planner.FindNextSlot(ctx, calendarID, req.DurationMinutes, zone)
		if err != nil {
			return nil, "", err
		}
		if slot == nil {
			return nil, fmt.Sprintf("No available %d minute slot in the next 7 days", req.DurationMinutes), nil
		}
		return slot, fmt.Sprintf("Next available slot starts at %s", timeutil.Format(slot.Start)), nil
	})
}

func (e *Engine) availabilityInput(calendarIDs []string, timeMin, timeMax, zone string) ([]string, timeutil.TimeRange, string, error) {
	ids, err := input.SplitList(calendarIDs, "calendarIds")
	if err != nil {
		return nil, timeutil.TimeRange{}, "", err
	}
	if len(ids) == 0 {
		return nil, timeutil.TimeRange{}, "", result.New(result.KindValidationFailed, "at least one calendar is required")
	}
	window, err := e.normalizer.NormalizeRange(timeMin, timeMax, timeutil.SpanList)
	if err != nil {
		return nil, timeutil.TimeRange{}, "", err
	}
	z, err := e.validZone(zone)
	if err != nil {
		return nil, timeutil.TimeRange{}, "", err
	}
	return ids, window, z, nil
}
