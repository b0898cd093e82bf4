package google

import (
	calendar "google.golang.org/api/calendar/v3"
)

// DefaultOAuthScopes are the scopes a token must carry for the read and
// write tools.
var DefaultOAuthScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	calendar.CalendarScope,
}

// ReadOnlyOAuthScopes are sufficient when the server runs read-only.
var ReadOnlyOAuthScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	calendar.CalendarReadonlyScope,
}

// ScopesFor returns the scopes needed for the given mode.
func ScopesFor(readOnly bool) []string {
	if readOnly {
		return ReadOnlyOAuthScopes
	}
	return DefaultOAuthScopes
}
