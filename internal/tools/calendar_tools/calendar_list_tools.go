package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/engine"
	"github.com/teemow/calbridge/internal/server"
	"github.com/teemow/calbridge/internal/tools/common"
)

func registerCalendarListTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) {
	listCalendarsTool := mcp.NewTool("calendar_list_calendars",
		mcp.WithDescription("List all calendars accessible to the user"),
	)
	addTool(s, sc, listCalendarsTool, handleListCalendars)

	listColorsTool := mcp.NewTool("calendar_list_colors",
		mcp.WithDescription("List the color IDs that can be assigned to events"),
	)
	addTool(s, sc, listColorsTool, handleListColors)

	currentTimeTool := mcp.NewTool("calendar_current_time",
		mcp.WithDescription("Get the current time, in the given zone or the calendar's own zone"),
		mcp.WithString("timeZone", mcp.Description(timeZoneDescription+" (default: the calendar's time zone)")),
	)
	addTool(s, sc, currentTimeTool, handleCurrentTime)

	if readOnly {
		return
	}

	createCalendarTool := mcp.NewTool("calendar_create_calendar",
		mcp.WithDescription("Create a secondary calendar"),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Calendar title"),
		),
		mcp.WithString("description", mcp.Description("Calendar description")),
		mcp.WithString("timeZone", mcp.Description(timeZoneDescription)),
	)
	addTool(s, sc, createCalendarTool, handleCreateCalendar)

	updateCalendarTool := mcp.NewTool("calendar_update_calendar",
		mcp.WithDescription("Update the title, description or time zone of a calendar"),
		mcp.WithString("calendarId",
			mcp.Required(),
			mcp.Description("The ID of the calendar to update"),
		),
		mcp.WithString("summary", mcp.Description("New calendar title")),
		mcp.WithString("description", mcp.Description("New calendar description")),
		mcp.WithString("timeZone", mcp.Description("New "+timeZoneDescription)),
	)
	addTool(s, sc, updateCalendarTool, handleUpdateCalendar)

	deleteCalendarTool := mcp.NewTool("calendar_delete_calendar",
		mcp.WithDescription("Delete a secondary calendar. The primary calendar cannot be deleted."),
		mcp.WithString("calendarId",
			mcp.Required(),
			mcp.Description("The ID of the calendar to delete"),
		),
	)
	addTool(s, sc, deleteCalendarTool, handleDeleteCalendar)
}

func handleListCalendars(ctx context.Context, _ *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	return common.JSONResult(sc.Engine().ListCalendars(ctx))
}

func handleListColors(ctx context.Context, _ *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	return common.JSONResult(sc.Engine().ListColors(ctx))
}

func handleCurrentTime(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	zone := args.str("timeZone")
	if args.err != nil {
		return common.FailResult(args.err)
	}
	return common.JSONResult(sc.Engine().CurrentTime(ctx, zone))
}

func calendarInput(args *arguments) engine.CalendarInput {
	return engine.CalendarInput{
		Summary:     args.str("summary"),
		Description: args.str("description"),
		TimeZone:    args.str("timeZone"),
	}
}

func handleCreateCalendar(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	in := calendarInput(args)
	if args.err != nil {
		return common.FailResult(args.err)
	}
	return common.JSONResult(sc.Engine().CreateCalendar(ctx, in))
}

func handleUpdateCalendar(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	calendarID := args.str("calendarId")
	in := calendarInput(args)
	if args.err != nil {
		return common.FailResult(args.err)
	}
	return common.JSONResult(sc.Engine().UpdateCalendar(ctx, calendarID, in))
}

func handleDeleteCalendar(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	calendarID := args.str("calendarId")
	if args.err != nil {
		return common.FailResult(args.err)
	}
	return common.JSONResult(sc.Engine().DeleteCalendar(ctx, calendarID))
}
