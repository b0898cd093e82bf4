package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned when an account has no stored token.
var ErrNoToken = errors.New("no Google OAuth token found")

// TokenProvider is an interface for providing OAuth tokens for Google APIs
// This abstraction allows different token sources (file-based, secret store, etc.)
type TokenProvider interface {
	// GetTokenForAccount retrieves an OAuth token for the specified account
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)

	// HasTokenForAccount checks if a token exists for the specified account
	HasTokenForAccount(account string) bool
}

var accountNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validateAccountName(account string) error {
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, '-' and '_' are allowed", account)
	}
	return nil
}

// FileTokenProvider reads tokens written by an external authorization
// flow from a directory, one file per account.
type FileTokenProvider struct {
	dir string
}

// NewFileTokenProvider creates a provider reading from dir. An empty dir
// means the calbridge directory under the user cache directory.
func NewFileTokenProvider(dir string) *FileTokenProvider {
	if dir == "" {
		dir = filepath.Join(userCacheDir(), "calbridge")
	}
	return &FileTokenProvider{dir: dir}
}

// TokenPath returns the token file of account.
func (p *FileTokenProvider) TokenPath(account string) string {
	return filepath.Join(p.dir, "google-"+account+".token")
}

// GetTokenForAccount retrieves a token from disk for the specified account.
// The file holds either an oauth2.Token as JSON or the legacy
// "<access> <refresh>" pair.
func (p *FileTokenProvider) GetTokenForAccount(_ context.Context, account string) (*oauth2.Token, error) {
	if err := validateAccountName(account); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.TokenPath(account))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w for account %q", ErrNoToken, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	return parseToken(data)
}

// HasTokenForAccount checks if a token file exists for the specified account
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	if validateAccountName(account) != nil {
		return false
	}
	_, err := os.Stat(p.TokenPath(account))
	return err == nil
}

// SaveToken stores tok for account with owner-only permissions.
func (p *FileTokenProvider) SaveToken(account string, tok *oauth2.Token) error {
	if err := validateAccountName(account); err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(p.TokenPath(account), data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func parseToken(data []byte) (*oauth2.Token, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var tok oauth2.Token
		if err := json.Unmarshal([]byte(trimmed), &tok); err != nil {
			return nil, fmt.Errorf("invalid token file: %w", err)
		}
		if tok.AccessToken == "" && tok.RefreshToken == "" {
			return nil, errors.New("invalid token file: no access or refresh token")
		}
		return &tok, nil
	}

	f := strings.Fields(trimmed)
	if len(f) != 2 {
		return nil, errors.New("invalid token format")
	}
	// The legacy format has no expiry, so force a refresh on first use.
	return &oauth2.Token{
		AccessToken:  f[0],
		TokenType:    "Bearer",
		RefreshToken: f[1],
		Expiry:       time.Unix(1, 0),
	}, nil
}

func userCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	if runtime.GOOS == "windows" {
		return os.TempDir()
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}
