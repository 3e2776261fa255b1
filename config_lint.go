package goPortal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity uint8

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one finding of [Config.Lint].
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins every warning at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint reports settings that pass [Config.Validate] but weaken the
// deployment. It never fails; callers decide which severity is fatal.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Security.ExposeDiagnostics {
		add("diagnostics_exposed", LintHigh, "raw provider responses are returned to browsers")
	}
	if c.Catalog.Enabled && c.Security.ProductionMode && strings.HasPrefix(c.Catalog.SecretKey, "sk_test_") {
		add("catalog_test_key", LintHigh, "production mode uses a test payment key")
	}
	if !c.Cookie.Secure {
		add("cookie_insecure", LintWarn, "session cookie is sent over plain http")
	}
	if len(c.Cookie.Secret) > 0 && len(c.Cookie.Secret) < 32 {
		add("cookie_secret_short", LintWarn, "cookie secret is shorter than 256 bits")
	}
	if c.Cookie.Leeway > time.Minute {
		add("cookie_leeway_large", LintWarn, "cookie expiry leeway exceeds 1m")
	}
	if !c.Security.EnableCallbackThrottle {
		add("callback_throttle_disabled", LintWarn, "failed callbacks are not throttled")
	}
	if c.Session.TTL > 7*24*time.Hour {
		add("session_ttl_long", LintWarn, "sessions outlive 7 days")
	}
	if c.Provider.RedirectURL != "" && !strings.HasPrefix(c.Provider.RedirectURL, "https://") {
		add("redirect_not_https", LintWarn, "provider redirect url is not https")
	}
	if c.Provider.Timeout > 30*time.Second {
		add("provider_timeout_long", LintInfo, "provider calls may hold a request for over 30s")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "no audit trail is recorded")
	}
	if !c.Metrics.Enabled {
		add("metrics_disabled", LintInfo, "metrics are disabled")
	}

	return ws
}
