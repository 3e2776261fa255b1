package middleware

import (
	"context"
	"errors"
	"net/http"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/MrEthical07/goPortal/session"
)

type sessionContextKey struct{}

type sessionValue struct {
	id     string
	record *session.Record
}

// SessionFromContext returns the session attached by [LoadSession] or
// [RequireSession].
func SessionFromContext(ctx context.Context) (string, *session.Record, bool) {
	v, ok := ctx.Value(sessionContextKey{}).(sessionValue)
	if !ok || v.record == nil {
		return "", nil, false
	}
	return v.id, v.record, true
}

// ContextWithSession attaches a session to ctx. Handlers under test use it
// to skip the cookie round-trip.
func ContextWithSession(ctx context.Context, sid string, rec *session.Record) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sessionValue{id: sid, record: rec})
}

// LoadSession attaches the caller's session when the cookie resolves to one
// and passes the request on either way. A cookie that no longer resolves is
// cleared.
func LoadSession(engine *goPortal.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, rec, err := resolve(engine, w, r)
			if err == nil {
				r = r.WithContext(ContextWithSession(r.Context(), sid, rec))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession redirects to loginPath unless the cookie resolves to a
// live session. No provider call is made on the way. A session store outage
// yields 503 rather than a login loop.
func RequireSession(engine *goPortal.Engine, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			sid, rec, err := resolve(engine, w, r)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sid, rec)))
			case errors.Is(err, goPortal.ErrSessionStoreUnavailable):
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			default:
				http.Redirect(w, r, loginPath, http.StatusFound)
			}
		})
	}
}

func resolve(engine *goPortal.Engine, w http.ResponseWriter, r *http.Request) (string, *session.Record, error) {
	if engine == nil {
		return "", nil, goPortal.ErrEngineNotReady
	}
	cookies := engine.Cookies()
	sid, ok := cookies.Read(r)
	if !ok {
		if _, err := r.Cookie(cookies.Name()); err == nil {
			cookies.Clear(w)
		}
		return "", nil, goPortal.ErrSessionNotFound
	}

	rec, err := engine.Session(r.Context(), sid)
	if err != nil {
		if errors.Is(err, goPortal.ErrSessionNotFound) {
			cookies.Clear(w)
		}
		return "", nil, err
	}
	return sid, rec, nil
}
