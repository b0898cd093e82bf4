package availability

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/format"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/result"
	"github.com/teemow/calbridge/internal/retry"
	"github.com/teemow/calbridge/internal/timeutil"
)

// NextSlotWindow is how far ahead FindNextSlot looks.
const NextSlotWindow = 7 * 24 * time.Hour

// Aggregator collects busy intervals through the retry executor and
// derives free slots from them.
type Aggregator struct {
	gateway    calendar.Gateway
	executor   *retry.Executor
	formatter  *format.Formatter
	normalizer *timeutil.Normalizer
	logger     *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithFormatter sets the formatter used for prose responses.
func WithFormatter(f *format.Formatter) Option {
	return func(a *Aggregator) { a.formatter = f }
}

// WithNormalizer sets the normalizer that supplies "now".
func WithNormalizer(n *timeutil.Normalizer) Option {
	return func(a *Aggregator) { a.normalizer = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// NewAggregator creates an Aggregator over gateway.
func NewAggregator(gateway calendar.Gateway, executor *retry.Executor, opts ...Option) *Aggregator {
	a := &Aggregator{gateway: gateway, executor: executor}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.OrDefault(a.logger)
	if a.formatter == nil {
		a.formatter = format.New(format.WithLogger(a.logger))
	}
	if a.normalizer == nil {
		a.normalizer = timeutil.NewNormalizer()
	}
	return a
}

// GetFreeBusy returns the busy intervals of every calendar in calendarIDs,
// each list sorted by start. Calendars the provider did not mention map to
// an empty list.
func (a *Aggregator) GetFreeBusy(ctx context.Context, calendarIDs []string, window timeutil.TimeRange, zone string) (map[string][]calendar.BusyInterval, error) {
	if len(calendarIDs) == 0 {
		return nil, result.New(result.KindValidationFailed, "at least one calendar is required")
	}
	if !window.End.After(window.Start) {
		return nil, result.New(result.KindValidationFailed, "a valid time range is required")
	}

	query := calendar.FreeBusyQuery{CalendarIDs: calendarIDs, Range: window, TimeZone: zone}
	payload, err := retry.Do(ctx, a.executor, calendar.OpQueryFreeBusy, func(ctx context.Context) (calendar.Payload, error) {
		return a.gateway.QueryFreeBusy(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	structured, err := a.formatter.Format(ctx, payload, format.KindFreeBusy)
	if err != nil {
		return nil, err
	}

	busy := make(map[string][]calendar.BusyInterval, len(calendarIDs))
	for _, id := range calendarIDs {
		busy[id] = SortBusy(structured.FreeBusy[id])
	}
	for id := range structured.FreeBusy {
		if _, ok := busy[id]; !ok {
			a.logger.Debug("ignoring busy data for unrequested calendar", logging.Calendar(id))
		}
	}
	return busy, nil
}

// FindAvailableSlots returns the gaps of at least durationMinutes common
// to all calendarIDs inside window. A positive limit caps the result.
func (a *Aggregator) FindAvailableSlots(ctx context.Context, calendarIDs []string, window timeutil.TimeRange, durationMinutes int, zone string, limit int) ([]Slot, error) {
	if err := ValidateDuration(durationMinutes); err != nil {
		return nil, err
	}

	busy, err := a.GetFreeBusy(ctx, calendarIDs, window, zone)
	if err != nil {
		return nil, err
	}

	slots, err := FindSlots(MergeBusy(busy), window, durationMinutes)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(slots) > limit {
		slots = slots[:limit]
	}
	return slots, nil
}

// FindNextSlot returns the first free slot on calendarID within the next
// NextSlotWindow, or nil when there is none.
func (a *Aggregator) FindNextSlot(ctx context.Context, calendarID string, durationMinutes int, zone string) (*Slot, error) {
	if err := ValidateDuration(durationMinutes); err != nil {
		return nil, err
	}
	if calendarID == "" {
		calendarID = calendar.PrimaryCalendarID
	}

	window, err := a.normalizer.WindowFromNow(NextSlotWindow)
	if err != nil {
		return nil, err
	}

	slots, err := a.FindAvailableSlots(ctx, []string{calendarID}, window, durationMinutes, zone, 1)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}
	return &slots[0], nil
}
