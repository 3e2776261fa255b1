package goPortal

import (
	"net/http"
	"time"
)

// SecurityReport summarises the effective security posture of an Engine.
// It contains no secrets and is safe to log at startup.
type SecurityReport struct {
	ProductionMode         bool
	CookieSecure           bool
	CookieSameSite         string
	CookieKeyRotation      bool
	SessionTTL             time.Duration
	CallbackThrottleActive bool
	MaxCallbackFailures    int
	DiagnosticsExposed     bool
	CatalogEnabled         bool
	AuditEnabled           bool
	LintWarnings           []string
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	sameSite := "lax"
	switch e.config.Cookie.SameSite {
	case http.SameSiteNoneMode:
		sameSite = "none"
	case http.SameSiteStrictMode:
		sameSite = "strict"
	}

	throttle := e.rateLimiter != nil
	report := SecurityReport{
		ProductionMode:         e.config.Security.ProductionMode,
		CookieSecure:           e.config.Cookie.Secure,
		CookieSameSite:         sameSite,
		CookieKeyRotation:      len(e.config.Cookie.VerifySecrets) > 1,
		SessionTTL:             e.config.Session.TTL,
		CallbackThrottleActive: throttle,
		DiagnosticsExposed:     e.config.Security.ExposeDiagnostics,
		CatalogEnabled:         e.catalog != nil,
		AuditEnabled:           e.audit != nil,
		LintWarnings:           e.config.Lint().BySeverity(LintWarn).Codes(),
	}
	if throttle {
		report.MaxCallbackFailures = e.config.Security.MaxCallbackFailures
	}
	return report
}
