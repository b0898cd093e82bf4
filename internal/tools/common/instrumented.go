package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/server"
)

var errToolFailed = errors.New("tool returned an error result")

// InstrumentedToolHandler wraps a tool handler with a tool span, invocation
// metrics and a debug log line.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		res, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		case res != nil && res.IsError:
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, errToolFailed)
		default:
			instrumentation.SetSpanSuccess(span)
		}

		account := AccountLabel(sc)
		sc.Metrics().RecordToolInvocationWithAccount(ctx, toolName, status, account, duration)

		logging.WithTool(sc.Logger(), toolName).DebugContext(ctx, "tool invocation",
			logging.Status(status),
			logging.Duration(duration),
			logging.UserHash(account),
		)

		return res, err
	}
}
