// Package result defines the tagged outcome returned by every engine
// operation and the error kinds callers branch on.
//
// A failure always carries a human-readable message for direct display and
// a machine-checkable Kind:
//
//	r := eng.DeleteCalendar(ctx, "primary")
//	if !r.Success && r.Error == result.KindProtectedResource {
//	    // never sent upstream
//	}
package result
