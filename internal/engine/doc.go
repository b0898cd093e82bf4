// Package engine is the calendar operation surface. Each operation
// sanitizes and normalizes its input, enforces the business rules, sends
// the provider call through the retry executor and returns a
// result.Result that is safe to show to a user.
//
// Batch operations run their items in order and never stop at a failed
// item.
package engine
