package goPortal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goPortal/catalog"
	"github.com/MrEthical07/goPortal/cookie"
	"github.com/MrEthical07/goPortal/internal/flows"
	"github.com/MrEthical07/goPortal/internal/rate"
	"github.com/MrEthical07/goPortal/session"
)

// Engine runs the login flow and the storefront operations. It is safe for
// concurrent use once returned by [Builder.Build].
type Engine struct {
	config       Config
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	cookies      *cookie.Manager
	provider     ProviderClient
	catalog      *catalog.Service
	audit        *auditDispatcher
	metrics      *Metrics
	logger       *slog.Logger
}

// Close drains pending audit events. It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// Cookies returns the manager that signs and reads the session cookie.
func (e *Engine) Cookies() *cookie.Manager {
	if e == nil {
		return nil
	}
	return e.cookies
}

// SessionTTL is the lifetime of new sessions and of their cookie.
func (e *Engine) SessionTTL() time.Duration {
	if e == nil || e.sessionStore == nil {
		return 0
	}
	return e.sessionStore.TTL()
}

// ExposeDiagnostics reports whether callback failures may echo the failure
// reason and raw upstream payload to the browser.
func (e *Engine) ExposeDiagnostics() bool {
	return e != nil && e.config.Security.ExposeDiagnostics
}

// AuthCodeURL returns the provider URL that /login redirects to.
func (e *Engine) AuthCodeURL() string {
	if e == nil || e.provider == nil {
		return ""
	}
	return e.provider.AuthCodeURL()
}

// Authorize completes a provider callback: it exchanges code, fetches the
// profile and memberships in that order and stores a new session.
//
// Flow failures are returned as *[FlowError]; errors.Is matches the reason
// sentinel ([ErrMissingCode], [ErrTokenExchangeFailed], ...) and, for
// provider failures, [ErrUpstream]. A throttled caller gets
// [ErrCallbackRateLimited] before any provider call is made.
//
//	Performance: 3 provider round-trips, 1 Redis SET, plus 1-2 Redis ops when
//	the callback throttle is enabled.
func (e *Engine) Authorize(ctx context.Context, code string) (*AuthorizeResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	res, err := flows.RunAuthorize(ctx, code, e.authorizeDeps())
	if err != nil {
		var failure *flows.AuthorizeFailure
		if errors.As(err, &failure) {
			flowErr := &FlowError{
				Reason:  FailureReason(failure.Reason),
				Payload: failure.Payload,
				Err:     failure.Err,
			}
			e.logAuthorizeFailure(ctx, failure)
			return nil, flowErr
		}
		return nil, err
	}

	return &AuthorizeResult{
		SessionID: res.SessionID,
		Session:   res.Record,
	}, nil
}

func (e *Engine) authorizeDeps() flows.AuthorizeDeps {
	deps := flows.AuthorizeDeps{
		MaxMemberships:      e.config.Session.MaxMemberships,
		ClientIPFromContext: clientIPFromContext,
		MetricInc:           func(id int) { e.metricInc(MetricID(id)) },
		ObserveLatency:      func(d time.Duration) { e.observe(MetricAuthorizeLatency, d) },
		EmitAudit:           e.emitAudit,
		Warn:                e.logger.Warn,
		Metrics: flows.AuthorizeMetrics{
			Success:               int(MetricAuthorizeSuccess),
			MissingCode:           int(MetricAuthorizeMissingCode),
			TokenExchangeFailed:   int(MetricAuthorizeTokenExchangeFailed),
			ProfileFetchFailed:    int(MetricAuthorizeProfileFetchFailed),
			MembershipFetchFailed: int(MetricAuthorizeMembershipFetchFailed),
			SessionStoreFailed:    int(MetricAuthorizeSessionStoreFailed),
			RateLimited:           int(MetricCallbackRateLimited),
			SessionCreated:        int(MetricSessionCreated),
		},
		Events: flows.AuthorizeEvents{
			Success:     AuditAuthorizeSuccess,
			Failure:     AuditAuthorizeFailure,
			RateLimited: AuditCallbackRateLimited,
		},
		Errors: flows.AuthorizeErrors{
			EngineNotReady: ErrEngineNotReady,
			RateLimited:    ErrCallbackRateLimited,
		},
	}
	if e.provider != nil {
		deps.ExchangeCode = e.provider.ExchangeCode
		deps.FetchProfile = e.provider.FetchProfile
		deps.FetchMemberships = e.provider.FetchMemberships
	}
	if e.sessionStore != nil {
		deps.CreateSession = e.sessionStore.Create
	}
	if e.rateLimiter != nil {
		deps.CheckCallbackRate = e.checkCallbackRate
		deps.IncrementCallbackRate = e.rateLimiter.IncrementCallback
		deps.ResetCallbackRate = e.rateLimiter.ResetCallback
	}
	return deps
}

// checkCallbackRate fails open when Redis is down; only an exhausted budget
// blocks the callback.
func (e *Engine) checkCallbackRate(ctx context.Context, ip string) error {
	err := e.rateLimiter.CheckCallback(ctx, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return err
	default:
		e.logger.WarnContext(ctx, "callback throttle unavailable", "error", err)
		return nil
	}
}

func (e *Engine) logAuthorizeFailure(ctx context.Context, failure *flows.AuthorizeFailure) {
	attrs := []any{
		"reason", failure.Reason,
		"state", failure.State.String(),
		"request_id", RequestIDFromContext(ctx),
	}
	if failure.Err != nil {
		attrs = append(attrs, "error", failure.Err.Error())
	}
	if failure.Payload != "" {
		attrs = append(attrs, "payload", truncate(failure.Payload, maxLoggedPayload))
	}
	e.logger.WarnContext(ctx, "authorization failed", attrs...)
}

// Session returns the record behind sid. Unknown, expired and unreadable
// sessions all report [ErrSessionNotFound].
//
//	Performance: 1 Redis GET.
func (e *Engine) Session(ctx context.Context, sid string) (*session.Record, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if sid == "" {
		return nil, ErrSessionNotFound
	}

	rec, err := e.sessionStore.Get(ctx, sid)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, session.ErrNotFound):
		e.metricInc(MetricSessionLookupMiss)
		return nil, ErrSessionNotFound
	case errors.Is(err, session.ErrCorrupt):
		e.metricInc(MetricSessionLookupMiss)
		e.logger.WarnContext(ctx, "discarding unreadable session", "error", err)
		return nil, ErrSessionNotFound
	default:
		return nil, fmt.Errorf("%w: %w", ErrSessionStoreUnavailable, err)
	}
}

// Logout destroys sid. Logging out an unknown or empty session succeeds.
//
//	Performance: 1 Redis DEL.
func (e *Engine) Logout(ctx context.Context, sid string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	deps := flows.LogoutDeps{
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Metrics: flows.LogoutMetrics{
			SessionDestroyed: int(MetricSessionDestroyed),
			LogoutFailure:    int(MetricLogoutFailure),
		},
		Event:              AuditLogout,
		InvalidationFailed: ErrSessionInvalidationFailed,
		EngineNotReady:     ErrEngineNotReady,
	}
	if e.sessionStore != nil {
		deps.DestroySession = e.sessionStore.Destroy
	}
	return flows.RunLogout(ctx, sid, deps)
}

// ListCatalog returns the joined product list. Any provider failure yields an
// error and no items.
func (e *Engine) ListCatalog(ctx context.Context) ([]catalog.Item, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.catalog == nil {
		return nil, ErrCatalogDisabled
	}

	start := time.Now()
	items, err := e.catalog.List(ctx)
	e.observe(MetricCatalogListLatency, time.Since(start))
	if err != nil {
		e.metricInc(MetricCatalogListFailure)
		e.logger.WarnContext(ctx, "catalog listing failed", "error", err, "request_id", RequestIDFromContext(ctx))
		return nil, err
	}
	e.metricInc(MetricCatalogListSuccess)
	return items, nil
}

// CreateCheckout starts a one-unit checkout for priceID and returns the
// provider-hosted payment URL.
func (e *Engine) CreateCheckout(ctx context.Context, priceID string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if e.catalog == nil {
		return "", ErrCatalogDisabled
	}

	url, err := e.catalog.CreateCheckout(ctx, priceID)
	if err != nil {
		if errors.Is(err, ErrInvalidPrice) {
			e.metricInc(MetricCheckoutInvalidPrice)
		} else {
			e.metricInc(MetricCheckoutFailure)
			e.logger.WarnContext(ctx, "checkout creation failed", "error", err, "price_id", priceID)
		}
		e.emitAudit(ctx, AuditCheckoutFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"price_id": priceID}
		})
		return "", err
	}

	e.metricInc(MetricCheckoutSuccess)
	e.emitAudit(ctx, AuditCheckoutCreated, true, "", "", nil, func() map[string]string {
		return map[string]string{"price_id": priceID}
	})
	return url, nil
}

// Health pings the session store.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.sessionStore == nil {
		return HealthStatus{}
	}

	latency, err := e.sessionStore.Ping(ctx)
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   latency,
	}
}

// CallbackFailures returns the failed-callback count recorded for ip in the
// current throttle window.
func (e *Engine) CallbackFailures(ctx context.Context, ip string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	if e.rateLimiter == nil || ip == "" {
		return 0, nil
	}
	return e.rateLimiter.CallbackFailures(ctx, ip)
}

const maxLoggedPayload = 512

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
