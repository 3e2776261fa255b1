package goPortal

import (
	"testing"
	"time"
)

func TestLint_DefaultConfigHasNoHighWarnings(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Errorf("default config should not fail AsError(LintHigh): %v", err)
	}
	// Development defaults run over plain http.
	if !containsCode(cfg.Lint().Codes(), "cookie_insecure") {
		t.Error("expected cookie_insecure on default config")
	}
}

func TestLint_DiagnosticsExposedIsHigh(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.ExposeDiagnostics = true
	ws := cfg.Lint()

	found := false
	for _, w := range ws {
		if w.Code == "diagnostics_exposed" {
			found = true
			if w.Severity != LintHigh {
				t.Errorf("diagnostics_exposed should be HIGH, got %s", w.Severity)
			}
		}
	}
	if !found {
		t.Fatal("expected diagnostics_exposed warning")
	}
	if err := ws.AsError(LintHigh); err == nil {
		t.Error("expected AsError(LintHigh) to fail")
	}
}

func TestLint_TestKeyInProduction(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.ProductionMode = true
	cfg.Catalog.Enabled = true
	cfg.Catalog.SecretKey = "sk_test_abc"
	if !containsCode(cfg.Lint().Codes(), "catalog_test_key") {
		t.Error("expected catalog_test_key warning")
	}

	cfg.Security.ProductionMode = false
	if containsCode(cfg.Lint().Codes(), "catalog_test_key") {
		t.Error("test keys are fine outside production")
	}
}

func TestLint_ThrottleDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.EnableCallbackThrottle = false
	if !containsCode(cfg.Lint().Codes(), "callback_throttle_disabled") {
		t.Error("expected callback_throttle_disabled warning")
	}
}

func TestLint_LongSessionAndLeeway(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.TTL = 14 * 24 * time.Hour
	cfg.Cookie.Leeway = 90 * time.Second
	codes := cfg.Lint().Codes()
	if !containsCode(codes, "session_ttl_long") || !containsCode(codes, "cookie_leeway_large") {
		t.Errorf("expected ttl and leeway warnings, got %v", codes)
	}
}

func TestLint_AuditDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Audit.Enabled = false
	if !containsCode(cfg.Lint().Codes(), "audit_disabled") {
		t.Error("expected audit_disabled warning when audit is off")
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.ExposeDiagnostics = true
	ws := cfg.Lint()

	high := ws.BySeverity(LintHigh)
	if len(high) == 0 {
		t.Error("expected at least one HIGH severity warning")
	}
	for _, w := range high {
		if w.Severity < LintHigh {
			t.Errorf("BySeverity(LintHigh) returned warning with severity %s", w.Severity)
		}
	}
	if len(ws.BySeverity(LintInfo)) != len(ws) {
		t.Error("BySeverity(LintInfo) must return everything")
	}
}

// helpers

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
