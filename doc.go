// Package goPortal implements a small member portal: an OAuth
// authorization-code login against an external provider with server-side
// sessions in Redis, plus a storefront that lists products from a payment
// provider and starts hosted checkouts.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goPortal is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy and value types (MetricsSnapshot, AuditEvent,
// SecurityReport). The callback state machine lives in internal/flows, the
// failed-callback throttle in internal/rate. HTTP handlers live in package
// web and never talk to Redis or the providers directly.
//
// # What this package must NOT do
//
//   - Persist or log provider access tokens.
//   - Write a session before every provider call of a callback succeeded.
//   - Return partial catalog listings.
//   - Import package web (no import cycles).
//
// # Performance contract
//
// Session lookup is the hot path: one Redis GET plus an HMAC check of the
// cookie. Authorize costs three sequential provider round-trips and one
// Redis SET.
package goPortal
