// Package session provides Redis-backed persistence for portal sessions and the
// compact binary encoding they are stored in.
//
// # Binary encoding
//
// Records are stored as a versioned, length-prefixed binary blob. Decode rejects
// unknown versions, truncated input and trailing bytes with [ErrCorrupt]; a new
// version may add fields but never reinterprets old ones.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Record] model. It does
// NOT talk to the login provider, sign cookies or decide when a session may be
// created. Those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goPortal, provider or cookie (no upward imports).
//   - Persist access tokens or any other provider credential.
//   - Update a record in place after it was created.
package session
