// Package middleware adapts goPortal.Engine to net/http.
//
//   - [RequestContext] stamps request id, client IP and User-Agent.
//   - [LoadSession] attaches the caller's session when there is one.
//   - [RequireSession] redirects to the login route when there is none.
//
// # Architecture boundaries
//
// Session decisions are delegated to Engine.Session and the engine's cookie
// manager. This package only translates outcomes into redirects and status
// codes.
//
// # What this package must NOT do
//
//   - Access Redis directly.
//   - Call the login provider.
package middleware
