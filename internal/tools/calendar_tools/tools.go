package calendar_tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/server"
	"github.com/teemow/calbridge/internal/tools/common"
)

// handlerFunc is a tool handler with access to the server context.
type handlerFunc func(ctx context.Context, args *arguments, sc *server.ServerContext) (*mcp.CallToolResult, error)

// RegisterCalendarTools registers all Calendar-related tools with the MCP
// server. Tools that change calendar data are only registered when
// readOnly is false.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	registerEventTools(s, sc, readOnly)
	registerCalendarListTools(s, sc, readOnly)
	registerSchedulingTools(s, sc)
	return nil
}

// addTool registers tool with an instrumented handler that decodes the
// request arguments first.
func addTool(s *mcpserver.MCPServer, sc *server.ServerContext, tool mcp.Tool, handler handlerFunc) {
	s.AddTool(tool, common.InstrumentedToolHandler(tool.Name, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handler(ctx, newArguments(request.GetArguments()), sc)
	}))
}

// arguments reads typed tool arguments. The first decoding error sticks
// and is reported by err.
type arguments struct {
	values map[string]any
	err    error
}

func newArguments(values map[string]any) *arguments {
	if values == nil {
		values = map[string]any{}
	}
	return &arguments{values: values}
}

func (a *arguments) keep(err error) {
	if a.err == nil {
		a.err = err
	}
}

func (a *arguments) has(name string) bool {
	v, ok := a.values[name]
	return ok && v != nil
}

func (a *arguments) str(name string) string {
	s, err := common.StringArg(a.values, name)
	a.keep(err)
	return s
}

func (a *arguments) number(name string) int {
	n, err := common.IntArg(a.values, name)
	a.keep(err)
	return n
}

func (a *arguments) flag(name string) bool {
	b, err := common.BoolArg(a.values, name)
	a.keep(err)
	return b
}

func (a *arguments) list(name string) []string {
	l, err := common.ListArg(a.values, name)
	a.keep(err)
	return l
}

// rules reads recurrence rules. RRULE values contain commas, so a plain
// string is split on newlines only.
func (a *arguments) rules(name string) []string {
	s, ok := a.values[name].(string)
	if !ok || strings.HasPrefix(strings.TrimSpace(s), "[") {
		return a.list(name)
	}

	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
