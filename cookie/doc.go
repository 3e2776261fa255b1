// Package cookie issues and verifies the signed session cookie. The cookie value
// is an HS256 JWT whose only application claim is the opaque session id.
package cookie
