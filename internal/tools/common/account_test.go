package common

import (
	"testing"

	"github.com/teemow/calbridge/internal/server"
)

func TestAccountLabel(t *testing.T) {
	if got := AccountLabel(nil); got != DefaultAccount {
		t.Errorf("AccountLabel(nil) = %q, want %q", got, DefaultAccount)
	}
	if got := AccountLabel(newServerContext(t)); got != DefaultAccount {
		t.Errorf("AccountLabel() = %q, want %q", got, DefaultAccount)
	}
	if got := AccountLabel(newServerContext(t, server.WithAccount("work@example.com"))); got != "work@example.com" {
		t.Errorf("AccountLabel() = %q, want %q", got, "work@example.com")
	}
}
