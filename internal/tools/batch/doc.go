// Package batch provides helpers for tools that act on several items at
// once.
//
// This package includes helpers for:
//   - Parsing parameters that accept both single values and arrays
//   - Running items sequentially while isolating per-item failures
//   - Reporting a success count alongside every item's result
package batch
