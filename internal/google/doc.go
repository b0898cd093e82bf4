// Package google provides the OAuth2 plumbing between stored Google tokens
// and the Calendar API client.
//
// Tokens are obtained by an external authorization flow and consumed here
// through the TokenProvider interface. FileTokenProvider reads them from
// one file per account. CalendarDialer turns a token into an authenticated
// *calendar.Service and serves as the dial function of the provider
// connection, so expired grants surface as connection failures.
package google
