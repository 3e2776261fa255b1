// Package provider is the outbound client for the third-party login API.
//
// It performs the three calls of the login flow: code exchange, profile fetch
// and membership-list fetch. The code exchange goes through golang.org/x/oauth2;
// the two bearer-authenticated reads use an oauth2 transport on the same
// [net/http.Client].
//
// # Architecture boundaries
//
// This package only speaks HTTP. It does not create sessions, log tokens or
// decide what a failure means for the caller. Every non-success response is
// returned as an [upstream.Error] carrying the raw body for diagnostics.
//
// # What this package must NOT do
//
//   - Retry requests or refresh tokens.
//   - Import goPortal or session (no upward imports).
//   - Persist or log access tokens.
package provider
