// Package retry wraps provider calls in a bounded retry loop with
// connection recovery.
//
// Each attempt moves the call through the phases
//
//	Idle → Attempting → (Success | Retrying → Attempting) → Exhausted
//
// and first makes sure the provider connection is ready. A failed connect
// counts as a failed attempt. Delays between attempts come from a pure
// Backoff function and are applied through an injectable Sleeper.
package retry
