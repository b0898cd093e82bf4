package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/result"
	"github.com/teemow/calbridge/internal/timeutil"
)

// APIGateway talks to Google Calendar v3 and always returns structured
// payloads.
type APIGateway struct {
	sessions SessionSource[*calendar.Service]
	clock    timeutil.Clock
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// APIOption configures an APIGateway.
type APIOption func(*APIGateway)

// WithAPIClock sets the clock used by CurrentTime.
func WithAPIClock(c timeutil.Clock) APIOption {
	return func(g *APIGateway) { g.clock = c }
}

// WithAPILogger sets the logger.
func WithAPILogger(l *slog.Logger) APIOption {
	return func(g *APIGateway) { g.logger = l }
}

// WithAPIMetrics records provider calls.
func WithAPIMetrics(m *instrumentation.Metrics) APIOption {
	return func(g *APIGateway) { g.metrics = m }
}

// NewAPIGateway creates a gateway drawing sessions from sessions.
func NewAPIGateway(sessions SessionSource[*calendar.Service], opts ...APIOption) *APIGateway {
	g := &APIGateway{sessions: sessions, clock: timeutil.SystemClock{}}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.WithGateway(logging.OrDefault(g.logger), instrumentation.GatewayAPI)
	return g
}

// Name implements Gateway.
func (g *APIGateway) Name() string {
	return instrumentation.GatewayAPI
}

func apiCall[T any](ctx context.Context, g *APIGateway, op string, fn func(ctx context.Context, svc *calendar.Service) (T, error)) (T, error) {
	var zero T
	svc, err := g.sessions.Session()
	if err != nil {
		return zero, err
	}

	ctx, span := instrumentation.StartProviderSpan(ctx, instrumentation.GatewayAPI, op)
	defer span.End()

	start := time.Now()
	value, err := fn(ctx, svc)
	duration := time.Since(start)

	if err != nil {
		classified, reauth := classifyAPIError(op, err)
		if reauth {
			g.sessions.Invalidate()
		}
		instrumentation.SetSpanError(span, classified)
		g.metrics.RecordProviderOperation(ctx, instrumentation.GatewayAPI, op, instrumentation.StatusError, duration)
		g.logger.Debug("provider call failed", logging.Operation(op), logging.Duration(duration), logging.Err(classified))
		return zero, classified
	}

	instrumentation.SetSpanSuccess(span)
	g.metrics.RecordProviderOperation(ctx, instrumentation.GatewayAPI, op, instrumentation.StatusSuccess, duration)
	return value, nil
}

// ListCalendars lists all calendars accessible to the user
func (g *APIGateway) ListCalendars(ctx context.Context) (Payload, error) {
	return apiCall(ctx, g, OpListCalendars, func(ctx context.Context, svc *calendar.Service) (Payload, error) {
		calendars := []CalendarInfo{}
		err := svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
			for _, entry := range page.Items {
				calendars = append(calendars, toCalendarInfo(entry))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &StructuredPayload{Calendars: calendars}, nil
	})
}

// ListEvents lists events in a calendar within a time range
func (g *APIGateway) ListEvents(ctx context.Context, q EventQuery) (Payload, error) {
	return g.listEvents(ctx, OpListEvents, q)
}

// SearchEvents is ListEvents filtered by a free-text query.
func (g *APIGateway) SearchEvents(ctx context.Context, q EventQuery) (Payload, error) {
	return g.listEvents(ctx, OpSearchEvents, q)
}

func (g *APIGateway) listEvents(ctx context.Context, op string, q EventQuery) (Payload, error) {
	return apiCall(ctx, g, op, func(ctx context.Context, svc *calendar.Service) (Payload, error) {
		call := svc.Events.List(q.CalendarID).
			TimeMin(timeutil.Format(q.Range.Start)).
			TimeMax(timeutil.Format(q.Range.End)).
			MaxResults(int64(ClampMaxResults(q.MaxResults))).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if q.TimeZone != "" {
			call = call.TimeZone(q.TimeZone)
		}
		if q.Query != "" {
			call = call.Q(q.Query)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, err
		}

		events := make([]Event, 0, len(resp.Items))
		for _, item := range resp.Items {
			events = append(events, toEvent(item))
		}
		return &StructuredPayload{Events: events}, nil
	})
}

// CreateEvent creates a new calendar event
func (g *APIGateway) CreateEvent(ctx context.Context, calendarID string, d EventDraft) (Payload, error) {
	return apiCall(ctx, g, OpCreateEvent, func(ctx context.Context, svc *calendar.Service) (Payload, error) {
		event := &calendar.Event{
			Summary:     d.Summary,
			Description: d.Description,
			Location:    d.Location,
			ColorId:     d.ColorID,
			Start:       toEventDateTime(d.Start, d.TimeZone, d.AllDay),
			End:         toEventDateTime(d.End, d.TimeZone, d.AllDay),
			Recurrence:  d.Recurrence,
		}
		if len(d.Attendees) > 0 {
			event.Attendees = toAttendees(d.Attendees)
		}

		call := svc.Events.Insert(calendarID, event).Context(ctx)
		if d.AddConference {
			event.ConferenceData = &calendar.ConferenceData{
				CreateRequest: &calendar.CreateConferenceRequest{
					RequestId: uuid.NewString(),
				},
			}
			call = call.ConferenceDataVersion(1)
		}
		if len(d.Attendees) > 0 {
			call = call.SendUpdates("all")
		}

		created, err := call.Do()
		if err != nil {
			return nil, err
		}
		e := toEvent(created)
		return &StructuredPayload{Event: &e}, nil
	})
}

// UpdateEvent fetches the existing event and merges p over it.
func (g *APIGateway) UpdateEvent(ctx context.Context, calendarID, eventID string, p EventPatch) (Payload, error) {
	return apiCall(ctx, g, OpUpdateEvent, func(ctx context.Context, svc *calendar.Service) (Payload, error) {
		existing, err := svc.Events.Get(calendarID, eventID).Context(ctx).Do()
		if err != nil {
			return nil, err
		}

		if p.Summary != "" {
			existing.Summary = p.Summary
		}
		if p.Description != "" {
			existing.Description = p.Description
		}
		if p.Location != "" {
			existing.Location = p.Location
		}
		if p.ColorID != "" {
			existing.ColorId = p.ColorID
		}
		if !p.Start.IsZero() {
			existing.Start = toEventDateTime(p.Start, p.TimeZone, p.AllDay)
		}
		if !p.End.IsZero() {
			existing.End = toEventDateTime(p.End, p.TimeZone, p.AllDay)
		}
		if len(p.Attendees) > 0 {
			existing.Attendees = toAttendees(p.Attendees)
		}
		if len(p.Recurrence) > 0 {
			existing.Recurrence = p.Recurrence
		}

		updated, err := svc.Events.Update(calendarID, eventID, existing).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		e := toEvent(updated)
		return &StructuredPayload{Event: &e}, nil
	})
}

// DeleteEvent deletes a calendar event
func (g *APIGateway) DeleteEvent(ctx context.Context, calendarID, eventID string, notify bool) error {
	_, err := apiCall(ctx, g, OpDeleteEvent, func(ctx context.Context, svc *calendar.Service) (struct{}, error) {
		sendUpdates := "none"
		if notify {
			sendUpdates = "all"
		}
		return struct{}{}, svc.Events.Delete(calendarID, eventID).SendUpdates(sendUpdates).Context(ctx).Do()
	})
	return err
}

// CreateCalendar creates a secondary calendar.
func (g *APIGateway) CreateCalendar(ctx context.Context, d CalendarDraft) (Payload, error) {
	return apiCall(ctx, g, OpCreateCalendar, func(ctx context.Context, svc *calendar.Service) (Payload, error) {
		created, err := svc.Calendars.Insert(&calendar.Calendar{
			Summary:     d.Summary,
			Description: d.Description,
			TimeZone:    d.TimeZone,
		}).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		info := fromCalendar(created)
		return &StructuredPayload{Calendar: &info}, nil
	})
}

// UpdateCalendar patches the metadata of a calendar.
func (g *APIGateway) UpdateCalendar(ctx context.Context, calendarID string, d CalendarDraft) (Payload, error) {
	return apiCall(ctx, g, OpUpdateCalendar, func(ctx context.Context, svc *calendar.Service) (Payload, error) {
		patched, err := svc.Calendars.Patch(calendarID, &calendar.Calendar{
			Summary:     d.Summary,
			Description: d.Description,
			TimeZone:    d.TimeZone,
		}).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		info := fromCalendar(patched)
		return &StructuredPayload{Calendar: &info}, nil
	})
}

// DeleteCalendar deletes a secondary calendar. The primary calendar is
// refused without contacting the provider.
func (g *APIGateway) DeleteCalendar(ctx context.Context, calendarID string) error {
	if isPrimary(calendarID) {
		return result.New(result.KindProtectedResource, "the primary calendar cannot be deleted")
	}
	_, err := apiCall(ctx, g, OpDeleteCalendar, func(ctx context.Context, svc *calendar.Service) (struct{}, error) {
		return struct{}{}, svc.Calendars.Delete(calendarID).Context(ctx).Do()
	})
	return err
}

// QueryFreeBusy checks availability for calendars in a time range
func (g *APIGateway) QueryFreeBusy(ctx context.Context, q FreeBusyQuery) (Payload, error) {
	return apiCall(ctx, g, OpQueryFreeBusy, func(ctx context.Context, svc *calendar.Service) (Payload, error) {
		items := make([]*calendar.FreeBusyRequestItem, len(q.CalendarIDs))
		for i, id := range q.CalendarIDs {
			items[i] = &calendar.FreeBusyRequestItem{Id: id}
		}

		resp, err := svc.Freebusy.Query(&calendar.FreeBusyRequest{
			TimeMin:  timeutil.Format(q.Range.Start),
			TimeMax:  timeutil.Format(q.Range.End),
			TimeZone: q.TimeZone,
			Items:    items,
		}).Context(ctx).Do()
		if err != nil {
			return nil, err
		}

		busy := make(map[string][]BusyInterval, len(q.CalendarIDs))
		for _, id := range q.CalendarIDs {
			cal, ok := resp.Calendars[id]
			if !ok {
				busy[id] = []BusyInterval{}
				continue
			}
			if len(cal.Errors) > 0 {
				return nil, freeBusyCalendarError(id, cal.Errors)
			}
			intervals := make([]BusyInterval, 0, len(cal.Busy))
			for _, period := range cal.Busy {
				start, serr := time.Parse(time.RFC3339, period.Start)
				end, eerr := time.Parse(time.RFC3339, period.End)
				if serr != nil || eerr != nil {
					g.logger.Warn("skipping unparseable busy period", logging.Calendar(id))
					continue
				}
				intervals = append(intervals, BusyInterval{Start: timeutil.Canonical(start), End: timeutil.Canonical(end)})
			}
			busy[id] = intervals
		}
		return &StructuredPayload{FreeBusy: busy}, nil
	})
}

func freeBusyCalendarError(id string, errs []*calendar.Error) error {
	reason := errs[0].Reason
	if reason == "notFound" {
		return result.New(result.KindNotFound, "calendar %s not found", id)
	}
	return result.New(result.KindUpstreamError, "free/busy unavailable for calendar %s: %s", id, reason)
}

// ListColors lists the event color palette.
func (g *APIGateway) ListColors(ctx context.Context) (Payload, error) {
	return apiCall(ctx, g, OpListColors, func(ctx context.Context, svc *calendar.Service) (Payload, error) {
		resp, err := svc.Colors.Get().Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		colors := make([]Color, 0, len(resp.Event))
		for id, def := range resp.Event {
			colors = append(colors, Color{ID: id, Background: def.Background, Foreground: def.Foreground})
		}
		sortColors(colors)
		return &StructuredPayload{Colors: colors}, nil
	})
}

// CurrentTime reports now in zone. An empty zone uses the user's calendar
// setting.
func (g *APIGateway) CurrentTime(ctx context.Context, zone string) (Payload, error) {
	if zone == "" {
		setting, err := apiCall(ctx, g, OpCurrentTime, func(ctx context.Context, svc *calendar.Service) (*calendar.Setting, error) {
			return svc.Settings.Get("timezone").Context(ctx).Do()
		})
		if err != nil {
			return nil, err
		}
		zone = setting.Value
	}

	loc, err := timeutil.Location(zone)
	if err != nil {
		return nil, err
	}
	now := timeutil.Canonical(g.clock.Now())
	return &StructuredPayload{CurrentTime: &CurrentTime{
		Time:     now,
		TimeZone: loc.String(),
		Local:    now.In(loc).Format(time.RFC3339),
	}}, nil
}
