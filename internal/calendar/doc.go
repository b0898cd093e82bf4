// Package calendar is the provider gateway. It turns one validated intent
// into one call against the calendar provider and hands back either typed
// records or the provider's prose.
//
// Two implementations share the Gateway interface:
//
//   - APIGateway uses the Google Calendar v3 API and returns
//     StructuredPayload values.
//   - ToolCallGateway calls the tools of another MCP server and returns
//     ProsePayload values. ParseCalendars, ParseEvents and friends recover
//     records from that prose following grammar ProseGrammarVersion.
//
// Both gateways classify failures: NotFound and UpstreamError are final,
// anything unclassified is transient and left to the retry executor.
package calendar
