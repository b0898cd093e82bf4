package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/engine"
	"github.com/teemow/calbridge/internal/server"
	"github.com/teemow/calbridge/internal/tools/common"
)

func registerSchedulingTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	queryFreeBusyTool := mcp.NewTool("calendar_query_freebusy",
		mcp.WithDescription("Check availability for one or more calendars/attendees in a time range"),
		mcp.WithString("calendars",
			mcp.Required(),
			mcp.Description("Comma-separated list of calendar IDs or email addresses to check"),
		),
		mcp.WithString("timeMin", mcp.Description("Start time for the range (default: now). "+timeDescription)),
		mcp.WithString("timeMax", mcp.Description("End time for the range (default: 7 days after now). "+timeDescription)),
		mcp.WithString("timeZone", mcp.Description(timeZoneDescription)),
	)
	addTool(s, sc, queryFreeBusyTool, handleQueryFreeBusy)

	findAvailableTimeTool := mcp.NewTool("calendar_find_available_time",
		mcp.WithDescription("Find available time slots for scheduling a meeting with one or more attendees"),
		mcp.WithString("attendees",
			mcp.Required(),
			mcp.Description("Comma-separated list of attendee email addresses or calendar IDs"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Meeting duration in minutes (1 to 1440)"),
		),
		mcp.WithString("timeMin", mcp.Description("Start time for search range (default: now). "+timeDescription)),
		mcp.WithString("timeMax", mcp.Description("End time for search range (default: 7 days after now). "+timeDescription)),
		mcp.WithString("timeZone", mcp.Description(timeZoneDescription)),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of available slots to return (default: all)"),
		),
	)
	addTool(s, sc, findAvailableTimeTool, handleFindAvailableTime)

	findNextSlotTool := mcp.NewTool("calendar_find_next_slot",
		mcp.WithDescription("Find the first free slot of the given length in the coming 7 days"),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Slot length in minutes (1 to 1440)"),
		),
		mcp.WithString("calendarId", mcp.Description(calendarDescription)),
		mcp.WithString("timeZone", mcp.Description(timeZoneDescription)),
	)
	addTool(s, sc, findNextSlotTool, handleFindNextSlot)
}

func handleQueryFreeBusy(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	req := engine.FreeBusyRequest{
		CalendarIDs: args.list("calendars"),
		TimeMin:     args.str("timeMin"),
		TimeMax:     args.str("timeMax"),
		TimeZone:    args.str("timeZone"),
	}
	if args.err != nil {
		return common.FailResult(args.err)
	}
	return common.JSONResult(sc.Engine().GetFreeBusy(ctx, req))
}

func handleFindAvailableTime(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	req := engine.SlotsRequest{
		CalendarIDs:     args.list("attendees"),
		TimeMin:         args.str("timeMin"),
		TimeMax:         args.str("timeMax"),
		DurationMinutes: args.number("durationMinutes"),
		TimeZone:        args.str("timeZone"),
		Limit:           args.number("maxResults"),
	}
	if args.err != nil {
		return common.FailResult(args.err)
	}
	return common.JSONResult(sc.Engine().FindAvailableSlots(ctx, req))
}

func handleFindNextSlot(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	req := engine.NextSlotRequest{
		CalendarID:      args.str("calendarId"),
		DurationMinutes: args.number("durationMinutes"),
		TimeZone:        args.str("timeZone"),
	}
	if args.err != nil {
		return common.FailResult(args.err)
	}
	return common.JSONResult(sc.Engine().FindNextSlot(ctx, req))
}
