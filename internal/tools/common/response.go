package common

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calbridge/internal/result"
)

// JSONResult renders r as an indented JSON tool response. A failed result
// also sets the MCP error flag.
func JSONResult[T any](r result.Result[T]) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}

	res := mcp.NewToolResultText(string(data))
	res.IsError = !r.Success
	return res, nil
}

// FailResult renders err as a failed result.
func FailResult(err error) (*mcp.CallToolResult, error) {
	return JSONResult(result.Fail[any](err))
}
