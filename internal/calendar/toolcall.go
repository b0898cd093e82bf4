package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/result"
	"github.com/teemow/calbridge/internal/timeutil"
)

// DefaultToolNames maps operations to the tools of a calendar MCP server.
func DefaultToolNames() map[string]string {
	return map[string]string{
		OpListCalendars:  "list-calendars",
		OpListEvents:     "list-events",
		OpSearchEvents:   "search-events",
		OpCreateEvent:    "create-event",
		OpUpdateEvent:    "update-event",
		OpDeleteEvent:    "delete-event",
		OpCreateCalendar: "create-calendar",
		OpUpdateCalendar: "update-calendar",
		OpDeleteCalendar: "delete-calendar",
		OpQueryFreeBusy:  "get-freebusy",
		OpListColors:     "list-colors",
		OpCurrentTime:    "get-current-time",
	}
}

// ToolClientFactory creates an MCP client that has not been started yet.
type ToolClientFactory func() (*client.Client, error)

// DialToolClient returns a dialer that starts and initializes a client
// from newClient. It fits connection.Dialer[*client.Client].
func DialToolClient(newClient ToolClientFactory, info mcp.Implementation) func(ctx context.Context) (*client.Client, error) {
	return func(ctx context.Context) (*client.Client, error) {
		c, err := newClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create tool client: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to start tool client: %w", err)
		}

		req := mcp.InitializeRequest{}
		req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		req.Params.ClientInfo = info
		if _, err := c.Initialize(ctx, req); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to initialize tool client: %w", err)
		}
		return c, nil
	}
}

// CloseToolClient fits connection.Closer[*client.Client].
func CloseToolClient(c *client.Client) error {
	return c.Close()
}

// ToolCallGateway reaches the provider through another MCP server whose
// tools answer in prose. Every call yields a ProsePayload.
type ToolCallGateway struct {
	sessions SessionSource[*client.Client]
	tools    map[string]string
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// ToolCallOption configures a ToolCallGateway.
type ToolCallOption func(*ToolCallGateway)

// WithToolNames overrides tool names per operation. Operations missing from
// names keep their default.
func WithToolNames(names map[string]string) ToolCallOption {
	return func(g *ToolCallGateway) {
		for op, name := range names {
			if name != "" {
				g.tools[op] = name
			}
		}
	}
}

// WithToolCallLogger sets the logger.
func WithToolCallLogger(l *slog.Logger) ToolCallOption {
	return func(g *ToolCallGateway) { g.logger = l }
}

// WithToolCallMetrics records provider calls.
func WithToolCallMetrics(m *instrumentation.Metrics) ToolCallOption {
	return func(g *ToolCallGateway) { g.metrics = m }
}

// NewToolCallGateway creates a gateway drawing clients from sessions.
func NewToolCallGateway(sessions SessionSource[*client.Client], opts ...ToolCallOption) *ToolCallGateway {
	g := &ToolCallGateway{sessions: sessions, tools: DefaultToolNames()}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.WithGateway(logging.OrDefault(g.logger), instrumentation.GatewayToolCall)
	return g
}

// Name implements Gateway.
func (g *ToolCallGateway) Name() string {
	return instrumentation.GatewayToolCall
}

// ToolName returns the tool used for op.
func (g *ToolCallGateway) ToolName(op string) string {
	return g.tools[op]
}

func (g *ToolCallGateway) call(ctx context.Context, op string, args map[string]any) (string, error) {
	c, err := g.sessions.Session()
	if err != nil {
		return "", err
	}

	tool := g.tools[op]
	ctx, span := instrumentation.StartProviderSpan(ctx, instrumentation.GatewayToolCall, op,
		attribute.String(instrumentation.SpanAttrTool, tool))
	defer span.End()

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	start := time.Now()
	res, err := c.CallTool(ctx, req)
	duration := time.Since(start)

	var text string
	switch {
	case err != nil:
		if ctx.Err() == nil {
			// The transport is suspect; reconnect on the next attempt.
			g.sessions.Invalidate()
		}
		err = fmt.Errorf("%s: tool %s: %w", op, tool, err)
	case res == nil:
		err = fmt.Errorf("%s: tool %s returned no result", op, tool)
	default:
		text = resultText(res)
		if res.IsError {
			err = classifyToolError(op, text)
		}
	}

	if err != nil {
		instrumentation.SetSpanError(span, err)
		g.metrics.RecordProviderOperation(ctx, instrumentation.GatewayToolCall, op, instrumentation.StatusError, duration)
		g.logger.Debug("tool call failed", logging.Operation(op), logging.Tool(tool), logging.Duration(duration), logging.Err(err))
		return "", err
	}

	instrumentation.SetSpanSuccess(span)
	g.metrics.RecordProviderOperation(ctx, instrumentation.GatewayToolCall, op, instrumentation.StatusSuccess, duration)
	return text, nil
}

func (g *ToolCallGateway) prose(ctx context.Context, op string, args map[string]any) (Payload, error) {
	text, err := g.call(ctx, op, args)
	if err != nil {
		return nil, err
	}
	return &ProsePayload{Message: text}, nil
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ListCalendars implements Gateway.
func (g *ToolCallGateway) ListCalendars(ctx context.Context) (Payload, error) {
	return g.prose(ctx, OpListCalendars, map[string]any{})
}

// ListEvents implements Gateway.
func (g *ToolCallGateway) ListEvents(ctx context.Context, q EventQuery) (Payload, error) {
	return g.prose(ctx, OpListEvents, eventQueryArgs(q))
}

// SearchEvents implements Gateway.
func (g *ToolCallGateway) SearchEvents(ctx context.Context, q EventQuery) (Payload, error) {
	return g.prose(ctx, OpSearchEvents, eventQueryArgs(q))
}

func eventQueryArgs(q EventQuery) map[string]any {
	args := map[string]any{
		"calendarId": q.CalendarID,
		"timeMin":    timeutil.Format(q.Range.Start),
		"timeMax":    timeutil.Format(q.Range.End),
		"maxResults": ClampMaxResults(q.MaxResults),
	}
	setIf(args, "query", q.Query)
	setIf(args, "timeZone", q.TimeZone)
	return args
}

// CreateEvent implements Gateway.
func (g *ToolCallGateway) CreateEvent(ctx context.Context, calendarID string, d EventDraft) (Payload, error) {
	args := map[string]any{
		"calendarId": calendarID,
		"summary":    d.Summary,
		"start":      timeutil.Format(d.Start),
		"end":        timeutil.Format(d.End),
	}
	setIf(args, "description", d.Description)
	setIf(args, "location", d.Location)
	setIf(args, "timeZone", d.TimeZone)
	setIf(args, "colorId", d.ColorID)
	setIf(args, "attendees", strings.Join(d.Attendees, ","))
	if len(d.Recurrence) > 0 {
		args["recurrence"] = d.Recurrence
	}
	if d.AllDay {
		args["allDay"] = true
	}
	if d.AddConference {
		args["addGoogleMeet"] = true
	}
	return g.prose(ctx, OpCreateEvent, args)
}

// UpdateEvent implements Gateway. The remote tool performs the merge.
func (g *ToolCallGateway) UpdateEvent(ctx context.Context, calendarID, eventID string, p EventPatch) (Payload, error) {
	args := map[string]any{
		"calendarId": calendarID,
		"eventId":    eventID,
	}
	setIf(args, "summary", p.Summary)
	setIf(args, "description", p.Description)
	setIf(args, "location", p.Location)
	setIf(args, "timeZone", p.TimeZone)
	setIf(args, "colorId", p.ColorID)
	setIf(args, "attendees", strings.Join(p.Attendees, ","))
	if !p.Start.IsZero() {
		args["start"] = timeutil.Format(p.Start)
	}
	if !p.End.IsZero() {
		args["end"] = timeutil.Format(p.End)
	}
	if len(p.Recurrence) > 0 {
		args["recurrence"] = p.Recurrence
	}
	return g.prose(ctx, OpUpdateEvent, args)
}

// DeleteEvent implements Gateway.
func (g *ToolCallGateway) DeleteEvent(ctx context.Context, calendarID, eventID string, notify bool) error {
	_, err := g.call(ctx, OpDeleteEvent, map[string]any{
		"calendarId":  calendarID,
		"eventId":     eventID,
		"sendUpdates": notify,
	})
	return err
}

// CreateCalendar implements Gateway.
func (g *ToolCallGateway) CreateCalendar(ctx context.Context, d CalendarDraft) (Payload, error) {
	args := map[string]any{"summary": d.Summary}
	setIf(args, "description", d.Description)
	setIf(args, "timeZone", d.TimeZone)
	return g.prose(ctx, OpCreateCalendar, args)
}

// UpdateCalendar implements Gateway.
func (g *ToolCallGateway) UpdateCalendar(ctx context.Context, calendarID string, d CalendarDraft) (Payload, error) {
	args := map[string]any{"calendarId": calendarID}
	setIf(args, "summary", d.Summary)
	setIf(args, "description", d.Description)
	setIf(args, "timeZone", d.TimeZone)
	return g.prose(ctx, OpUpdateCalendar, args)
}

// DeleteCalendar implements Gateway. The primary calendar is refused
// without a tool call.
func (g *ToolCallGateway) DeleteCalendar(ctx context.Context, calendarID string) error {
	if isPrimary(calendarID) {
		return result.New(result.KindProtectedResource, "the primary calendar cannot be deleted")
	}
	_, err := g.call(ctx, OpDeleteCalendar, map[string]any{"calendarId": calendarID})
	return err
}

// QueryFreeBusy implements Gateway.
func (g *ToolCallGateway) QueryFreeBusy(ctx context.Context, q FreeBusyQuery) (Payload, error) {
	args := map[string]any{
		"calendarIds": strings.Join(q.CalendarIDs, ","),
		"timeMin":     timeutil.Format(q.Range.Start),
		"timeMax":     timeutil.Format(q.Range.End),
	}
	setIf(args, "timeZone", q.TimeZone)
	return g.prose(ctx, OpQueryFreeBusy, args)
}

// ListColors implements Gateway.
func (g *ToolCallGateway) ListColors(ctx context.Context) (Payload, error) {
	return g.prose(ctx, OpListColors, map[string]any{})
}

// CurrentTime implements Gateway.
func (g *ToolCallGateway) CurrentTime(ctx context.Context, zone string) (Payload, error) {
	args := map[string]any{}
	setIf(args, "timeZone", zone)
	return g.prose(ctx, OpCurrentTime, args)
}

func setIf(args map[string]any, key, value string) {
	if value != "" {
		args[key] = value
	}
}
