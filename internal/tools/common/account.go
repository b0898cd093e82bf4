package common

import (
	"github.com/teemow/calbridge/internal/server"
)

// DefaultAccount labels invocations when no account is configured.
const DefaultAccount = "default"

// AccountLabel returns the configured account of the server, or
// DefaultAccount when none is set.
func AccountLabel(sc *server.ServerContext) string {
	if sc == nil || sc.Account() == "" {
		return DefaultAccount
	}
	return sc.Account()
}
