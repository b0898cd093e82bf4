package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

func TestValidateAccountName(t *testing.T) {
	tests := []struct {
		name    string
		account string
		wantErr bool
	}{
		{"valid default", "default", false},
		{"valid work", "work", false},
		{"valid with hyphen", "work-email", false},
		{"valid with underscore", "personal_email", false},
		{"valid alphanumeric", "account123", false},
		{"empty", "", true},
		{"with spaces", "my account", true},
		{"with special chars", "account@work", true},
		{"with slash", "work/personal", true},
		{"with dot", "work.email", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAccountName(tt.account)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAccountName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileTokenProvider_TokenPath(t *testing.T) {
	p := NewFileTokenProvider(t.TempDir())
	if got := filepath.Base(p.TokenPath("work")); got != "google-work.token" {
		t.Errorf("TokenPath() base = %q, want %q", got, "google-work.token")
	}
}

func TestFileTokenProvider_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	p := NewFileTokenProvider(filepath.Join(t.TempDir(), "tokens"))

	if p.HasTokenForAccount("default") {
		t.Fatal("expected no token before saving")
	}
	if _, err := p.GetTokenForAccount(ctx, "default"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}

	want := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour).Round(time.Second)}
	if err := p.SaveToken("default", want); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}
	if !p.HasTokenForAccount("default") {
		t.Fatal("expected token after saving")
	}

	info, err := os.Stat(p.TokenPath("default"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file permissions = %o, want 600", perm)
	}

	got, err := p.GetTokenForAccount(ctx, "default")
	if err != nil {
		t.Fatalf("GetTokenForAccount() error = %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("GetTokenForAccount() = %+v, want %+v", got, want)
	}
}

func TestFileTokenProvider_LegacyFormat(t *testing.T) {
	dir := t.TempDir()
	p := NewFileTokenProvider(dir)
	if err := os.WriteFile(p.TokenPath("default"), []byte("access refresh\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tok, err := p.GetTokenForAccount(context.Background(), "default")
	if err != nil {
		t.Fatalf("GetTokenForAccount() error = %v", err)
	}
	if tok.AccessToken != "access" || tok.RefreshToken != "refresh" {
		t.Errorf("unexpected token %+v", tok)
	}
	if tok.Valid() {
		t.Error("legacy tokens must be treated as expired")
	}
}

func TestFileTokenProvider_InvalidFiles(t *testing.T) {
	p := NewFileTokenProvider(t.TempDir())
	for name, content := range map[string]string{
		"three-fields": "a b c",
		"empty-json":   "{}",
		"broken-json":  "{not json",
	} {
		if err := os.WriteFile(p.TokenPath(name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := p.GetTokenForAccount(context.Background(), name); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}

	if _, err := p.GetTokenForAccount(context.Background(), "../escape"); err == nil {
		t.Error("expected invalid account name to fail")
	}
	if p.HasTokenForAccount("../escape") {
		t.Error("invalid account name must never have a token")
	}
}

func TestClientConfig_OAuthConfig(t *testing.T) {
	if _, err := (ClientConfig{}).OAuthConfig(); err == nil {
		t.Error("expected missing client credentials to fail")
	}

	conf, err := ClientConfig{ClientID: "id", ClientSecret: "secret"}.OAuthConfig()
	if err != nil {
		t.Fatalf("OAuthConfig() error = %v", err)
	}
	if len(conf.Scopes) != len(DefaultOAuthScopes) {
		t.Errorf("expected default scopes, got %v", conf.Scopes)
	}

	conf, err = ClientConfig{ClientID: "id", ClientSecret: "secret", Scopes: ScopesFor(true)}.OAuthConfig()
	if err != nil {
		t.Fatal(err)
	}
	if conf.Scopes[len(conf.Scopes)-1] != ReadOnlyOAuthScopes[len(ReadOnlyOAuthScopes)-1] {
		t.Errorf("expected read-only scopes, got %v", conf.Scopes)
	}
}

func TestCalendarDialer_UsesStoredToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	p := NewFileTokenProvider(t.TempDir())
	if err := p.SaveToken("default", &oauth2.Token{AccessToken: "abc", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	conf, err := ClientConfig{ClientID: "id", ClientSecret: "secret"}.OAuthConfig()
	if err != nil {
		t.Fatal(err)
	}

	dial := CalendarDialer(conf, p, "default", option.WithEndpoint(srv.URL+"/"))
	svc, err := dial(context.Background())
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	if _, err := svc.CalendarList.List().Do(); err != nil {
		t.Fatalf("CalendarList.List() error = %v", err)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer abc")
	}
}

func TestCalendarDialer_MissingToken(t *testing.T) {
	conf, _ := ClientConfig{ClientID: "id", ClientSecret: "secret"}.OAuthConfig()
	dial := CalendarDialer(conf, NewFileTokenProvider(t.TempDir()), "default")
	if _, err := dial(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}
