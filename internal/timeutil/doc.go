// Package timeutil normalizes caller-supplied dates and times into
// canonical UTC instants and validated time ranges before they reach the
// calendar provider.
package timeutil
