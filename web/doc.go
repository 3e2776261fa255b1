// Package web is the HTTP surface of the portal.
//
// [NewServer] mounts the login flow (/login, /callback, /dashboard, /logout,
// /), the storefront API (/api/products, /api/create-checkout-session) and
// the operational endpoints /healthz and /metrics on one handler. Handlers
// translate engine errors into status codes and never reach Redis or the
// providers themselves.
//
// Callback failures answer with a generic message. Reasons and provider
// payloads are logged by the engine and only echoed when the engine's
// Security.ExposeDiagnostics is set, which ProductionMode forbids.
package web
