// Package calendar_tools exposes the calendar engine as MCP tools.
//
// Every tool answers with the JSON rendering of an operation result:
//
//	{"success": true, "data": {...}, "message": "Found 3 events"}
//	{"success": false, "error": "InvalidTimeRange", "message": "..."}
//
// Failed results also set the MCP error flag. Tools that create, change
// or delete calendar data are only registered when the server is not
// read-only.
package calendar_tools
