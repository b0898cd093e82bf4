package format

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/result"
)

// Kind names the record shape a payload is expected to carry.
type Kind string

const (
	KindCalendars   Kind = "calendars"
	KindEvents      Kind = "events"
	KindColors      Kind = "colors"
	KindFreeBusy    Kind = "freebusy"
	KindCurrentTime Kind = "currenttime"
	// KindEvent and KindCalendar are single records returned by writes.
	KindEvent    Kind = "event"
	KindCalendar Kind = "calendar"
)

// Structured is the stable shape handed to callers. Only the fields of
// Kind are meaningful.
type Structured struct {
	Kind        Kind
	Calendars   []calendar.CalendarInfo
	Events      []calendar.Event
	Colors      []calendar.Color
	FreeBusy    map[string][]calendar.BusyInterval
	CurrentTime *calendar.CurrentTime

	// Message is the provider's prose, kept for display.
	Message string
	// Dropped counts prose records discarded for missing required fields.
	Dropped int
}

// Total is the number of records of Kind.
func (s *Structured) Total() int {
	switch s.Kind {
	case KindCalendars, KindCalendar:
		return len(s.Calendars)
	case KindEvents, KindEvent:
		return len(s.Events)
	case KindColors:
		return len(s.Colors)
	case KindFreeBusy:
		return len(s.FreeBusy)
	case KindCurrentTime:
		if s.CurrentTime != nil {
			return 1
		}
	}
	return 0
}

// MarshalJSON renders {"<kind>": [...], "total": n}.
func (s *Structured) MarshalJSON() ([]byte, error) {
	out := map[string]any{"total": s.Total()}
	switch s.Kind {
	case KindCalendars, KindCalendar:
		out[string(KindCalendars)] = nonNil(s.Calendars)
	case KindEvents, KindEvent:
		out[string(KindEvents)] = nonNil(s.Events)
	case KindColors:
		out[string(KindColors)] = nonNil(s.Colors)
	case KindFreeBusy:
		fb := s.FreeBusy
		if fb == nil {
			fb = map[string][]calendar.BusyInterval{}
		}
		out["calendars"] = fb
	case KindCurrentTime:
		out["currentTime"] = s.CurrentTime
	}
	if s.Dropped > 0 {
		out["dropped"] = s.Dropped
	}
	return json.Marshal(out)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// Formatter turns gateway payloads into Structured results.
type Formatter struct {
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithLogger sets the logger used to report dropped records.
func WithLogger(l *slog.Logger) Option {
	return func(f *Formatter) { f.logger = l }
}

// WithMetrics records dropped prose records.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(f *Formatter) { f.metrics = m }
}

// New creates a Formatter.
func New(opts ...Option) *Formatter {
	f := &Formatter{}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.OrDefault(f.logger)
	return f
}

// Format passes structured payloads through and parses prose ones.
// Prose without matching blocks is an empty result, not an error.
func (f *Formatter) Format(ctx context.Context, payload calendar.Payload, kind Kind) (*Structured, error) {
	switch p := payload.(type) {
	case *calendar.StructuredPayload:
		return fromStructured(p, kind)
	case *calendar.ProsePayload:
		s, err := fromProse(p.Message, kind)
		if err != nil {
			return nil, err
		}
		if s.Dropped > 0 {
			f.logger.Warn("dropped malformed prose records",
				slog.String("kind", string(kind)),
				slog.Int("dropped", s.Dropped),
				slog.Int("kept", s.Total()),
				slog.String("grammar", calendar.ProseGrammarVersion))
			f.metrics.RecordProseDropped(ctx, string(kind), s.Dropped)
		}
		return s, nil
	case nil:
		return nil, result.New(result.KindUpstreamError, "provider returned no response")
	default:
		return nil, result.New(result.KindUpstreamError, "unsupported payload %T", payload)
	}
}

func fromStructured(p *calendar.StructuredPayload, kind Kind) (*Structured, error) {
	s := &Structured{Kind: kind}
	switch kind {
	case KindCalendars:
		s.Calendars = nonNil(p.Calendars)
	case KindEvents:
		s.Events = nonNil(p.Events)
	case KindColors:
		s.Colors = nonNil(p.Colors)
	case KindFreeBusy:
		s.FreeBusy = p.FreeBusy
	case KindCurrentTime:
		s.CurrentTime = p.CurrentTime
	case KindEvent:
		if p.Event != nil {
			s.Events = []calendar.Event{*p.Event}
		}
	case KindCalendar:
		if p.Calendar != nil {
			s.Calendars = []calendar.CalendarInfo{*p.Calendar}
		}
	default:
		return nil, unknownKind(kind)
	}
	return s, nil
}

func fromProse(message string, kind Kind) (*Structured, error) {
	s := &Structured{Kind: kind, Message: message}
	switch kind {
	case KindCalendars, KindCalendar:
		s.Calendars, s.Dropped = calendar.ParseCalendars(message)
	case KindEvents, KindEvent:
		s.Events, s.Dropped = calendar.ParseEvents(message)
	case KindColors:
		s.Colors, s.Dropped = calendar.ParseColors(message)
	case KindFreeBusy:
		s.FreeBusy, s.Dropped = calendar.ParseFreeBusy(message)
	case KindCurrentTime:
		s.CurrentTime, s.Dropped = calendar.ParseCurrentTime(message)
	default:
		return nil, unknownKind(kind)
	}
	return s, nil
}

func unknownKind(kind Kind) error {
	return result.New(result.KindValidationFailed, "unknown response kind %q", kind)
}
