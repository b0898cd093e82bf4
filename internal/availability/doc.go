// Package availability merges free/busy data and finds open slots.
//
// FindSlots is a pure cursor sweep: starting at the window start, every
// gap before the next busy interval that is long enough becomes a slot,
// and the cursor then jumps to the later of itself and the interval's
// end. Overlapping intervals are absorbed by that jump.
package availability
