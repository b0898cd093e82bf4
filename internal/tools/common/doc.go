// Package common provides shared utilities for MCP tool implementations:
// instrumentation of tool handlers, typed argument readers and the JSON
// rendering of operation results.
package common
