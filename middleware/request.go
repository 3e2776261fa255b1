package middleware

import (
	"net"
	"net/http"
	"strings"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestContext stamps every request with a request id, the client IP and
// the User-Agent so that engine logs and audit events can be correlated.
//
// An inbound X-Request-ID is kept only when it parses as a UUID. When
// trustProxy is set the left-most X-Forwarded-For entry is taken as the
// client IP; otherwise RemoteAddr is used.
func RequestContext(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := goPortal.WithRequestID(r.Context(), id)
			ctx = goPortal.WithClientIP(ctx, ClientIP(r, trustProxy))
			ctx = goPortal.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the caller's address without port.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return ""
}
