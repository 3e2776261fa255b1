package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/MrEthical07/goPortal/metrics/export/prometheus"
	"github.com/MrEthical07/goPortal/middleware"
	"github.com/MrEthical07/goPortal/session"
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"

	callbackFailedMessage = "Login failed. Please try again."
)

// Config controls presentation details of the HTTP surface.
type Config struct {
	CDNBaseURL string
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
	// DisableMetrics drops the /metrics route.
	DisableMetrics bool
}

// Server serves the login flow, the dashboard and the storefront API.
type Server struct {
	engine   *goPortal.Engine
	config   Config
	renderer *Renderer
	logger   *slog.Logger
	handler  http.Handler

	writeCookie func(w http.ResponseWriter, sid string, ttl time.Duration) error
}

// NewServer wires the routes around engine. A nil logger discards output.
func NewServer(engine *goPortal.Engine, cfg Config, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, goPortal.ErrEngineNotReady
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		engine:   engine,
		config:   cfg,
		renderer: NewRenderer(cfg.CDNBaseURL),
		logger:   logger,
	}
	s.writeCookie = engine.Cookies().Write

	requireSession := middleware.RequireSession(engine, loginPath)
	loadSession := middleware.LoadSession(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET /callback", s.handleCallback)
	mux.Handle("GET /dashboard", requireSession(http.HandlerFunc(s.handleDashboard)))
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.Handle("GET /{$}", loadSession(http.HandlerFunc(s.handleHome)))

	mux.HandleFunc("GET /api/products", s.handleProducts)
	mux.HandleFunc("POST /api/create-checkout-session", s.handleCreateCheckout)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if !cfg.DisableMetrics {
		mux.Handle("/metrics", prometheus.NewPrometheusExporter(engine).Handler())
	}

	s.handler = chain(mux, s.recoverPanic, middleware.RequestContext(cfg.TrustProxy), s.accessLog)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	target := s.engine.AuthCodeURL()
	if target == "" {
		writeText(w, http.StatusServiceUnavailable, "login is not available")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := s.engine.Authorize(ctx, r.URL.Query().Get("code"))
	if err != nil {
		s.writeCallbackFailure(w, err)
		return
	}

	if err := s.writeCookie(w, res.SessionID, s.engine.SessionTTL()); err != nil {
		s.logger.ErrorContext(ctx, "session cookie signing failed",
			"error", err,
			"request_id", goPortal.RequestIDFromContext(ctx),
		)
		if err := s.engine.Logout(ctx, res.SessionID); err != nil {
			s.logger.WarnContext(ctx, "orphaned session not destroyed",
				"error", err,
				"request_id", goPortal.RequestIDFromContext(ctx),
			)
		}
		writeText(w, http.StatusInternalServerError, callbackFailedMessage)
		return
	}
	http.Redirect(w, r, dashboardPath, http.StatusFound)
}

func (s *Server) writeCallbackFailure(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, goPortal.ErrCallbackRateLimited):
		writeText(w, http.StatusTooManyRequests, "Too many failed login attempts. Try again later.")
		return
	case errors.Is(err, goPortal.ErrMissingCode):
		status = http.StatusBadRequest
	case errors.Is(err, goPortal.ErrSessionCreationFailed):
		status = http.StatusServiceUnavailable
	}

	body := callbackFailedMessage
	if s.engine.ExposeDiagnostics() {
		var flowErr *goPortal.FlowError
		if errors.As(err, &flowErr) {
			body = fmt.Sprintf("%s\n\n%s\n%s", body, flowErr.Reason, flowErr.Payload)
		} else {
			body = fmt.Sprintf("%s\n\n%v", body, err)
		}
	}
	writeText(w, status, body)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	_, rec, _ := middleware.SessionFromContext(r.Context())
	s.writePage(w, r, rec)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := middleware.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, dashboardPath, http.StatusFound)
		return
	}
	s.writePage(w, r, nil)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, rec *session.Record) {
	err := writeHTML(w, http.StatusOK, func(out io.Writer) error {
		return s.renderer.Render(out, rec)
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "page render failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookies := s.engine.Cookies()
	sid, _ := cookies.Read(r)
	if err := s.engine.Logout(r.Context(), sid); err != nil {
		// The cookie stays so the user can retry; the session is still live.
		writeText(w, http.StatusServiceUnavailable, "Logout failed. Please try again.")
		return
	}
	cookies.Clear(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

type checkoutRequest struct {
	PriceID string `json:"priceId"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ListCatalog(r.Context())
	if err != nil {
		if errors.Is(err, goPortal.ErrCatalogDisabled) {
			_ = writeJSONError(w, http.StatusNotFound, "catalog is not enabled")
			return
		}
		_ = writeJSONError(w, http.StatusInternalServerError, "failed to load products")
		return
	}
	_ = writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		_ = writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	url, err := s.engine.CreateCheckout(r.Context(), req.PriceID)
	switch {
	case err == nil:
		_ = writeJSON(w, http.StatusOK, checkoutResponse{URL: url})
	case errors.Is(err, goPortal.ErrInvalidPrice):
		_ = writeJSONError(w, http.StatusBadRequest, "priceId is required")
	case errors.Is(err, goPortal.ErrCatalogDisabled):
		_ = writeJSONError(w, http.StatusNotFound, "catalog is not enabled")
	default:
		_ = writeJSONError(w, http.StatusInternalServerError, "failed to create checkout session")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.engine.Health(r.Context())
	if !health.RedisAvailable {
		_ = writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				s.logger.ErrorContext(r.Context(), "panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", recovered,
					"stack", string(debug.Stack()),
				)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"request_id", goPortal.RequestIDFromContext(r.Context()),
		)
	})
}
