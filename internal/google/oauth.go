package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ClientConfig identifies the OAuth client the stored tokens were issued
// to. It is needed to refresh expired access tokens.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// OAuthConfig returns the oauth2 configuration for Google.
func (c ClientConfig) OAuthConfig() (*oauth2.Config, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, errors.New("google client id and secret are required")
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       scopes,
	}, nil
}

// GetTokenSource returns a refreshing token source for the stored token of
// account. The token is validated once so that a revoked grant fails here
// rather than on the first API call.
func GetTokenSource(ctx context.Context, conf *oauth2.Config, provider TokenProvider, account string) (oauth2.TokenSource, error) {
	tok, err := provider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	ts := oauth2.ReuseTokenSource(tok, conf.TokenSource(ctx, tok))
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("cached token is invalid: %w", err)
	}
	return ts, nil
}

// GetHTTPClient returns an HTTP client configured with OAuth2 authentication
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors
func GetHTTPClient(ts oauth2.TokenSource) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   &http.Transport{ForceAttemptHTTP2: false},
		},
	}
}

// CalendarDialer returns a function that opens an authenticated Calendar
// service for account. It is the dial function of the provider connection.
func CalendarDialer(conf *oauth2.Config, provider TokenProvider, account string, opts ...option.ClientOption) func(ctx context.Context) (*calendar.Service, error) {
	return func(ctx context.Context) (*calendar.Service, error) {
		ts, err := GetTokenSource(ctx, conf, provider, account)
		if err != nil {
			return nil, err
		}

		clientOpts := append([]option.ClientOption{option.WithHTTPClient(GetHTTPClient(ts))}, opts...)
		svc, err := calendar.NewService(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create calendar service: %w", err)
		}
		return svc, nil
	}
}
