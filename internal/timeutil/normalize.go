package timeutil

import (
	"strings"
	"time"
	// Zone lookups must not depend on the host's zoneinfo.
	_ "time/tzdata"

	"github.com/teemow/calbridge/internal/result"
)

// Span selects the default width of a window whose end was omitted.
type Span int

const (
	// SpanList is used by listing operations.
	SpanList Span = iota
	// SpanSearch is used by search operations.
	SpanSearch
)

const (
	DefaultListWindow   = 7 * 24 * time.Hour
	DefaultSearchWindow = 30 * 24 * time.Hour
)

// layoutsWithZone are tried first; the parsed offset is honoured.
var layoutsWithZone = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04-0700",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04-0700",
}

// utcSuffixes name UTC explicitly; they are stripped before parsing.
// Other zone abbreviations are ambiguous and stay unsupported.
var utcSuffixes = []string{" UTC", " GMT", "UTC", "GMT"}

// layoutsWithoutZone are interpreted as UTC.
var layoutsWithoutZone = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// TimeRange is a validated half-open interval with End after Start.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the range.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// NewRange validates that end is after start.
func NewRange(start, end time.Time) (TimeRange, error) {
	if !end.After(start) {
		return TimeRange{}, result.New(result.KindInvalidTimeRange,
			"end time %s must be after start time %s", Format(end), Format(start))
	}
	return TimeRange{Start: start, End: end}, nil
}

// Normalizer converts caller input into UTC instants with second precision.
type Normalizer struct {
	clock        Clock
	listWindow   time.Duration
	searchWindow time.Duration
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the clock used for "now" defaults.
func WithClock(c Clock) Option {
	return func(n *Normalizer) { n.clock = c }
}

// WithWindows overrides the default list and search window widths.
func WithWindows(list, search time.Duration) Option {
	return func(n *Normalizer) {
		if list > 0 {
			n.listWindow = list
		}
		if search > 0 {
			n.searchWindow = search
		}
	}
}

// NewNormalizer creates a Normalizer using the system clock by default.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		clock:        SystemClock{},
		listWindow:   DefaultListWindow,
		searchWindow: DefaultSearchWindow,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Now returns the current instant, normalized.
func (n *Normalizer) Now() time.Time {
	return Canonical(n.clock.Now())
}

// Normalize accepts a string, time.Time or *time.Time.
func (n *Normalizer) Normalize(input any) (time.Time, error) {
	switch v := input.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, result.New(result.KindInvalidTimeFormat, "time value is empty")
		}
		return Canonical(v), nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, result.New(result.KindInvalidTimeFormat, "time value is empty")
		}
		return Canonical(*v), nil
	case string:
		return Parse(v)
	default:
		return time.Time{}, result.New(result.KindInvalidTimeFormat, "unsupported time value of type %T", input)
	}
}

// NormalizeRange resolves an optional min/max pair. A nil or empty bound
// takes its default: now for min, now plus the span's window for max.
func (n *Normalizer) NormalizeRange(min, max any, span Span) (TimeRange, error) {
	now := n.Now()

	start := now
	if !isEmpty(min) {
		t, err := n.Normalize(min)
		if err != nil {
			return TimeRange{}, err
		}
		start = t
	}

	end := now.Add(n.window(span))
	if !isEmpty(max) {
		t, err := n.Normalize(max)
		if err != nil {
			return TimeRange{}, err
		}
		end = t
	}

	return NewRange(start, end)
}

// WindowFromNow returns [now, now+d).
func (n *Normalizer) WindowFromNow(d time.Duration) (TimeRange, error) {
	now := n.Now()
	return NewRange(now, now.Add(d))
}

func (n *Normalizer) window(span Span) time.Duration {
	if span == SpanSearch {
		return n.searchWindow
	}
	return n.listWindow
}

// Parse parses s with the canonical policy: seconds default to :00, a
// missing offset means UTC, the result is UTC truncated to seconds.
func Parse(s string) (time.Time, error) {
	t, err := parseAsWritten(s)
	if err != nil {
		return time.Time{}, err
	}
	return Canonical(t), nil
}

// ParseDate returns the calendar date written in s at midnight UTC. An
// offset in s does not move the date.
func ParseDate(s string) (time.Time, error) {
	t, err := parseAsWritten(s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// parseAsWritten keeps the offset found in s.
func parseAsWritten(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, result.New(result.KindInvalidTimeFormat, "time value is empty")
	}
	input := s
	s = trimUTCSuffix(s)

	for _, layout := range layoutsWithZone {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range layoutsWithoutZone {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, result.New(result.KindInvalidTimeFormat, "cannot parse %q as a date/time", input)
}

func trimUTCSuffix(s string) string {
	upper := strings.ToUpper(s)
	for _, suffix := range utcSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return strings.TrimSpace(s[:len(s)-len(suffix)])
		}
	}
	return s
}

// Canonical returns t in UTC with fractional seconds dropped.
func Canonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Format renders t in the wire format used towards the provider.
func Format(t time.Time) string {
	return Canonical(t).Format(time.RFC3339)
}

// Location resolves an IANA zone name. Empty means UTC.
func Location(zone string) (*time.Location, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, result.Wrap(result.KindValidationFailed, err, "unknown time zone %q", zone)
	}
	return loc, nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case *time.Time:
		return t == nil
	}
	return false
}
