package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/MrEthical07/goPortal/provider"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type stubProvider struct{}

func (stubProvider) AuthCodeURL() string { return "https://provider.test/authorize" }

func (stubProvider) ExchangeCode(context.Context, string) (*provider.Token, error) {
	return &provider.Token{AccessToken: "at"}, nil
}

func (stubProvider) FetchProfile(context.Context, string) (*provider.User, error) {
	return &provider.User{ID: "42", Username: "nelly"}, nil
}

func (stubProvider) FetchMemberships(context.Context, string) ([]provider.Guild, error) {
	return []provider.Guild{}, nil
}

func newEngine(t *testing.T) (*goPortal.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := goPortal.DefaultConfig()
	cfg.Provider.ClientID = "id"
	cfg.Provider.ClientSecret = "secret"
	cfg.Provider.RedirectURL = "http://localhost:3000/callback"
	cfg.Cookie.Secret = []byte("0123456789abcdef0123456789abcdef")

	engine, err := goPortal.New().WithConfig(cfg).WithRedis(rdb).WithProviderClient(stubProvider{}).Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return engine, mr
}

func login(t *testing.T, engine *goPortal.Engine) *http.Cookie {
	t.Helper()

	res, err := engine.Authorize(context.Background(), "code")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	rec := httptest.NewRecorder()
	if err := engine.Cookies().Write(rec, res.SessionID, engine.SessionTTL()); err != nil {
		t.Fatalf("cookie write failed: %v", err)
	}
	return rec.Result().Cookies()[0]
}

func okHandler(t *testing.T, wantSession bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, rec, ok := SessionFromContext(r.Context())
		if ok != wantSession {
			t.Errorf("session present = %v, want %v", ok, wantSession)
		}
		if ok && rec.Profile.ID != "42" {
			t.Errorf("unexpected profile %+v", rec.Profile)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireSessionRedirectsWithoutCookie(t *testing.T) {
	engine, _ := newEngine(t)
	h := RequireSession(engine, "/login")(okHandler(t, true))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected 302 /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRequireSessionPassesLiveSession(t *testing.T) {
	engine, _ := newEngine(t)
	cookie := login(t, engine)
	h := RequireSession(engine, "/login")(okHandler(t, true))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run, got %d", rec.Code)
	}
}

func TestRequireSessionClearsStaleCookie(t *testing.T) {
	engine, mr := newEngine(t)
	cookie := login(t, engine)
	mr.FlushAll()

	h := RequireSession(engine, "/login")(okHandler(t, true))
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookie.Name && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected stale cookie to be cleared")
	}
}

func TestRequireSessionStoreDown(t *testing.T) {
	engine, mr := newEngine(t)
	cookie := login(t, engine)
	mr.Close()

	h := RequireSession(engine, "/login")(okHandler(t, true))
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestLoadSessionIsOptional(t *testing.T) {
	engine, _ := newEngine(t)

	rec := httptest.NewRecorder()
	LoadSession(engine)(okHandler(t, false)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "portal_session", Value: "garbage"})
	rec = httptest.NewRecorder()
	LoadSession(engine)(okHandler(t, false)).ServeHTTP(rec, req)
	if len(rec.Result().Cookies()) == 0 {
		t.Fatal("expected tampered cookie to be cleared")
	}
}

func TestRequestContextStampsIDs(t *testing.T) {
	var gotID string
	h := RequestContext(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = goPortal.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if _, err := uuid.Parse(gotID); err != nil {
		t.Fatalf("expected generated uuid, got %q", gotID)
	}
	if rec.Header().Get(RequestIDHeader) != gotID {
		t.Fatal("response header must echo the request id")
	}

	inbound := uuid.NewString()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, inbound)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if gotID != inbound {
		t.Fatalf("expected inbound id to be kept, got %q", gotID)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")

	if got := ClientIP(req, false); got != "192.0.2.10" {
		t.Fatalf("untrusted proxy: got %q", got)
	}
	if got := ClientIP(req, true); got != "198.51.100.1" {
		t.Fatalf("trusted proxy: got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "garbage")
	if got := ClientIP(req, true); got != "192.0.2.10" {
		t.Fatalf("bad forwarded header: got %q", got)
	}
}
