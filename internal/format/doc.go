// Package format reshapes gateway payloads into a stable structured
// result. Structured payloads pass through untouched; prose payloads are
// parsed and records lacking required fields are dropped and reported.
package format
