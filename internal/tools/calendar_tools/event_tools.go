package calendar_tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/engine"
	"github.com/teemow/calbridge/internal/result"
	"github.com/teemow/calbridge/internal/server"
	"github.com/teemow/calbridge/internal/tools/batch"
	"github.com/teemow/calbridge/internal/tools/common"
)

const (
	timeDescription     = "Date/time, e.g. '2025-01-01T09:00:00Z', '2025-01-01T09:00' (UTC) or '2025-01-01'"
	timeZoneDescription = "IANA time zone (e.g., 'America/New_York')"
	calendarDescription = "Calendar ID (default: 'primary')"
)

func registerEventTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) {
	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List events in a time range. Defaults to the coming 7 days."),
		mcp.WithString("calendarId", mcp.Description(calendarDescription)),
		mcp.WithString("timeMin", mcp.Description("Start of the range (default: now). "+timeDescription)),
		mcp.WithString("timeMax", mcp.Description("End of the range (default: 7 days after now). "+timeDescription)),
		mcp.WithString("timeZone", mcp.Description(timeZoneDescription)),
		mcp.WithNumber("maxResults", mcp.Description("Maximum number of events to return (default: 250)")),
	)
	addTool(s, sc, listEventsTool, handleListEvents)

	searchEventsTool := mcp.NewTool("calendar_search_events",
		mcp.WithDescription("Search events by free text. Defaults to the coming 30 days."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text search terms"),
		),
		mcp.WithString("calendarId", mcp.Description(calendarDescription)),
		mcp.WithString("timeMin", mcp.Description("Start of the range (default: now). "+timeDescription)),
		mcp.WithString("timeMax", mcp.Description("End of the range (default: 30 days after now). "+timeDescription)),
		mcp.WithString("timeZone", mcp.Description(timeZoneDescription)),
		mcp.WithNumber("maxResults", mcp.Description("Maximum number of events to return (default: 250)")),
	)
	addTool(s, sc, searchEventsTool, handleSearchEvents)

	// Only register write tools if not in read-only mode
	if readOnly {
		return
	}

	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a calendar event"),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time. "+timeDescription),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time. "+timeDescription),
		),
		mcp.WithString("calendarId", mcp.Description(calendarDescription)),
		mcp.WithString("description", mcp.Description("Event description")),
		mcp.WithString("location", mcp.Description("Event location")),
		mcp.WithString("timeZone", mcp.Description(timeZoneDescription)),
		mcp.WithString("attendees", mcp.Description("Comma-separated list of attendee email addresses")),
		mcp.WithString("colorId", mcp.Description("Event color ID (see calendar_list_colors)")),
		mcp.WithString("recurrence", mcp.Description("RRULE lines, one per line, or a JSON array of rules")),
		mcp.WithBoolean("allDay", mcp.Description("Create an all-day event (ignores time portion of start/end)")),
		mcp.WithBoolean("addGoogleMeet", mcp.Description("Attach a Google Meet conference")),
	)
	addTool(s, sc, createEventTool, handleCreateEvent)

	createEventsTool := mcp.NewTool("calendar_create_events",
		mcp.WithDescription("Create several events at once. Each event is reported separately; one failure does not stop the others."),
		mcp.WithString("events",
			mcp.Required(),
			mcp.Description("JSON array of events with the fields of calendar_create_event"),
		),
		mcp.WithString("calendarId", mcp.Description("Calendar for events that do not name one (default: 'primary')")),
	)
	addTool(s, sc, createEventsTool, handleCreateEvents)

	updateEventTool := mcp.NewTool("calendar_update_event",
		mcp.WithDescription("Update an existing event. Only the given fields change."),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to update"),
		),
		mcp.WithString("calendarId", mcp.Description(calendarDescription)),
		mcp.WithString("summary", mcp.Description("New event title")),
		mcp.WithString("description", mcp.Description("New event description")),
		mcp.WithString("location", mcp.Description("New event location")),
		mcp.WithString("start", mcp.Description("New start time. "+timeDescription)),
		mcp.WithString("end", mcp.Description("New end time. "+timeDescription)),
		mcp.WithString("timeZone", mcp.Description(timeZoneDescription)),
		mcp.WithString("attendees", mcp.Description("New comma-separated list of attendee email addresses")),
		mcp.WithString("colorId", mcp.Description("New event color ID")),
		mcp.WithString("recurrence", mcp.Description("New RRULE lines, one per line, or a JSON array of rules")),
		mcp.WithBoolean("allDay", mcp.Description("Update to be an all-day event")),
	)
	addTool(s, sc, updateEventTool, handleUpdateEvent)

	deleteEventTool := mcp.NewTool("calendar_delete_event",
		mcp.WithDescription("Delete one event, or several when eventIds is given"),
		mcp.WithString("eventId", mcp.Description("The ID of the event to delete")),
		mcp.WithString("eventIds", mcp.Description("JSON array of event IDs to delete in one batch")),
		mcp.WithString("calendarId", mcp.Description(calendarDescription)),
		mcp.WithBoolean("sendUpdates", mcp.Description("Send cancellation emails to attendees")),
	)
	addTool(s, sc, deleteEventTool, handleDeleteEvent)
}

func eventsRequest(args *arguments) engine.EventsRequest {
	return engine.EventsRequest{
		CalendarID: args.str("calendarId"),
		TimeMin:    args.str("timeMin"),
		TimeMax:    args.str("timeMax"),
		Query:      args.str("query"),
		TimeZone:   args.str("timeZone"),
		MaxResults: args.number("maxResults"),
	}
}

func handleListEvents(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	req := eventsRequest(args)
	if args.err != nil {
		return common.FailResult(args.err)
	}
	return common.JSONResult(sc.Engine().ListEvents(ctx, req))
}

func handleSearchEvents(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	req := eventsRequest(args)
	if args.err != nil {
		return common.FailResult(args.err)
	}
	return common.JSONResult(sc.Engine().SearchEvents(ctx, req))
}

func eventInput(args *arguments, defaultCalendar string) engine.EventInput {
	in := engine.EventInput{
		CalendarID:    args.str("calendarId"),
		Summary:       args.str("summary"),
		Description:   args.str("description"),
		Location:      args.str("location"),
		Start:         args.str("start"),
		End:           args.str("end"),
		TimeZone:      args.str("timeZone"),
		AllDay:        args.flag("allDay"),
		Attendees:     args.list("attendees"),
		ColorID:       args.str("colorId"),
		Recurrence:    args.rules("recurrence"),
		AddConference: args.flag("addGoogleMeet"),
	}
	if in.CalendarID == "" {
		in.CalendarID = defaultCalendar
	}
	return in
}

func handleCreateEvent(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	in := eventInput(args, "")
	if args.err != nil {
		return common.FailResult(args.err)
	}
	return common.JSONResult(sc.Engine().CreateEvent(ctx, in))
}

func handleCreateEvents(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	calendarID := args.str("calendarId")
	if args.err != nil {
		return common.FailResult(args.err)
	}

	items, err := eventItems(args.values["events"])
	if err != nil {
		return common.FailResult(err)
	}

	inputs := make([]engine.EventInput, 0, len(items))
	for _, item := range items {
		itemArgs := newArguments(item)
		in := eventInput(itemArgs, calendarID)
		if itemArgs.err != nil {
			return common.FailResult(itemArgs.err)
		}
		inputs = append(inputs, in)
	}

	return common.JSONResult(sc.Engine().CreateEvents(ctx, inputs))
}

// eventItems decodes the events argument: a JSON array, either encoded
// as a string or already decoded by the transport.
func eventItems(value any) ([]map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, result.MissingField("events")
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, result.MissingField("events")
		}
		var items []map[string]any
		if err := json.Unmarshal([]byte(v), &items); err != nil {
			return nil, result.Wrap(result.KindValidationFailed, err, "events must be a JSON array of objects")
		}
		return items, nil
	case []any:
		items := make([]map[string]any, 0, len(v))
		for i, raw := range v {
			item, ok := raw.(map[string]any)
			if !ok {
				return nil, result.New(result.KindInvalidFieldType, "events[%d] must be an object, got %T", i, raw)
			}
			items = append(items, item)
		}
		return items, nil
	default:
		return nil, result.New(result.KindInvalidFieldType, "events must be an array, got %T", value)
	}
}

func handleUpdateEvent(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	req := engine.UpdateEventRequest{
		CalendarID:  args.str("calendarId"),
		EventID:     args.str("eventId"),
		Summary:     args.str("summary"),
		Description: args.str("description"),
		Location:    args.str("location"),
		Start:       args.str("start"),
		End:         args.str("end"),
		TimeZone:    args.str("timeZone"),
		AllDay:      args.flag("allDay"),
		Attendees:   args.list("attendees"),
		ColorID:     args.str("colorId"),
		Recurrence:  args.rules("recurrence"),
	}
	if args.err != nil {
		return common.FailResult(args.err)
	}
	return common.JSONResult(sc.Engine().UpdateEvent(ctx, req))
}

func handleDeleteEvent(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	calendarID := args.str("calendarId")
	notify := args.flag("sendUpdates")
	eventID := args.str("eventId")
	if args.err != nil {
		return common.FailResult(args.err)
	}

	if args.has("eventIds") {
		ids, err := batch.ParseStringOrArray(args.values["eventIds"], "eventIds")
		if err != nil {
			return common.FailResult(err)
		}
		return common.JSONResult(sc.Engine().DeleteEvents(ctx, calendarID, ids, notify))
	}

	return common.JSONResult(sc.Engine().DeleteEvent(ctx, engine.DeleteEventRequest{
		CalendarID: calendarID,
		EventID:    eventID,
		Notify:     notify,
	}))
}
