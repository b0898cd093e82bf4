// Package cmd implements the command-line interface for calbridge.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing the calendar tools
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The serve command is the default command when no subcommand is specified.
// Configuration is layered: built-in defaults, calbridge.yaml, CALBRIDGE_*
// environment variables (a .env file is honoured) and finally flags.
package cmd
