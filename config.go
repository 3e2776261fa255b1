package goPortal

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config is the full runtime configuration consumed by [Builder.Build].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Provider ProviderConfig
	Session  SessionConfig
	Cookie   CookieConfig
	Catalog  CatalogConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Server   ServerConfig
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig describes the external login provider.
//
// Scope is sent verbatim; the flow never negotiates it.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	CDNBaseURL   string
	Timeout      time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls server-side session persistence.
type SessionConfig struct {
	RedisPrefix string
	TTL         time.Duration
	// MaxMemberships caps how many memberships are kept in one record.
	// Zero keeps everything the provider returns.
	MaxMemberships int
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the signed session cookie.
type CookieConfig struct {
	Name     string
	Secret   []byte
	Secure   bool
	SameSite http.SameSite
	Path     string
	Issuer   string
	Leeway   time.Duration
	// KeyID and VerifySecrets allow rotating Secret without logging
	// everybody out: old kids keep verifying until removed.
	KeyID         string
	VerifySecrets map[string][]byte
}

/*
====================================
CATALOG CONFIG
====================================
*/

// CatalogConfig describes the payment provider used by the storefront.
type CatalogConfig struct {
	Enabled    bool
	SecretKey  string
	APIBaseURL string
	PageSize   int64
	SuccessURL string
	CancelURL  string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig groups hardening toggles.
type SecurityConfig struct {
	ProductionMode bool
	// ExposeDiagnostics appends raw upstream payloads to callback failure
	// responses. Never enable it outside local development.
	ExposeDiagnostics        bool
	EnableCallbackThrottle   bool
	MaxCallbackFailures      int
	CallbackCooldownDuration time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SERVER CONFIG
====================================
*/

// ServerConfig holds HTTP listener settings used by cmd/portal.
type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development-friendly baseline. Secrets and client
// credentials are left empty and must be supplied before [Config.Validate]
// passes.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Scope:      "identify guilds",
			AuthURL:    "https://discord.com/api/oauth2/authorize",
			TokenURL:   "https://discord.com/api/oauth2/token",
			APIBaseURL: "https://discord.com/api/v10",
			CDNBaseURL: "https://cdn.discordapp.com",
			Timeout:    10 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "ps",
			TTL:         7 * 24 * time.Hour,
		},
		Cookie: CookieConfig{
			Name:     "portal_session",
			Secure:   false,
			SameSite: http.SameSiteLaxMode,
			Path:     "/",
			Issuer:   "goPortal",
			Leeway:   30 * time.Second,
		},
		Catalog: CatalogConfig{
			Enabled:    false,
			PageSize:   100,
			SuccessURL: "http://localhost:3000/success.html",
			CancelURL:  "http://localhost:3000/cancel.html",
		},
		Security: SecurityConfig{
			ProductionMode:           false,
			ExposeDiagnostics:        false,
			EnableCallbackThrottle:   true,
			MaxCallbackFailures:      10,
			CallbackCooldownDuration: 10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Server: ServerConfig{
			Addr:              ":3000",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Cookie.Secret = cloneBytes(cfg.Cookie.Secret)
	if cfg.Cookie.VerifySecrets != nil {
		out.Cookie.VerifySecrets = make(map[string][]byte, len(cfg.Cookie.VerifySecrets))
		for kid, key := range cfg.Cookie.VerifySecrets {
			out.Cookie.VerifySecrets[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	// Provider
	if strings.TrimSpace(c.Provider.ClientID) == "" {
		return errors.New("Provider ClientID is required")
	}
	if strings.TrimSpace(c.Provider.ClientSecret) == "" {
		return errors.New("Provider ClientSecret is required")
	}
	if strings.TrimSpace(c.Provider.Scope) == "" {
		return errors.New("Provider Scope is required")
	}
	if err := requireAbsoluteURL("Provider RedirectURL", c.Provider.RedirectURL); err != nil {
		return err
	}
	if err := requireAbsoluteURL("Provider AuthURL", c.Provider.AuthURL); err != nil {
		return err
	}
	if err := requireAbsoluteURL("Provider TokenURL", c.Provider.TokenURL); err != nil {
		return err
	}
	if err := requireAbsoluteURL("Provider APIBaseURL", c.Provider.APIBaseURL); err != nil {
		return err
	}
	if c.Provider.Timeout <= 0 {
		return errors.New("Provider Timeout must be > 0")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix is required")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.MaxMemberships < 0 {
		return errors.New("Session MaxMemberships must be >= 0")
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.Name) == "" {
		return errors.New("Cookie Name is required")
	}
	if len(c.Cookie.Secret) == 0 {
		return errors.New("Cookie Secret is required")
	}
	if c.Cookie.Leeway < 0 || c.Cookie.Leeway > 2*time.Minute {
		return errors.New("Cookie Leeway must be between 0 and 2m")
	}
	switch c.Cookie.SameSite {
	case 0, http.SameSiteDefaultMode, http.SameSiteLaxMode, http.SameSiteStrictMode, http.SameSiteNoneMode:
		// valid
	default:
		return errors.New("Cookie SameSite is invalid")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}
	if c.Cookie.SameSite == http.SameSiteStrictMode {
		// The provider redirects back cross-site; a strict cookie would be
		// withheld from the first dashboard request after login.
		return errors.New("Cookie SameSite=Strict breaks the provider redirect")
	}

	// Catalog
	if c.Catalog.Enabled {
		if strings.TrimSpace(c.Catalog.SecretKey) == "" {
			return errors.New("Catalog SecretKey is required when catalog is enabled")
		}
		if c.Catalog.PageSize <= 0 || c.Catalog.PageSize > 100 {
			return errors.New("Catalog PageSize must be between 1 and 100")
		}
		if err := requireAbsoluteURL("Catalog SuccessURL", c.Catalog.SuccessURL); err != nil {
			return err
		}
		if err := requireAbsoluteURL("Catalog CancelURL", c.Catalog.CancelURL); err != nil {
			return err
		}
	}

	// Security
	if c.Security.EnableCallbackThrottle {
		if c.Security.MaxCallbackFailures <= 0 {
			return errors.New("MaxCallbackFailures must be > 0 when callback throttle is enabled")
		}
		if c.Security.CallbackCooldownDuration <= 0 {
			return errors.New("CallbackCooldownDuration must be > 0 when callback throttle is enabled")
		}
	}

	// Server
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("Server Addr is required")
	}
	if c.Server.ReadHeaderTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return errors.New("Server timeouts must be > 0")
	}
	if c.Server.WriteTimeout < c.Provider.Timeout {
		return errors.New("Server WriteTimeout must not be shorter than Provider Timeout")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if len(c.Cookie.Secret) < 32 {
			return errors.New("ProductionMode requires Cookie Secret length >= 256 bits")
		}
		if !c.Cookie.Secure {
			return errors.New("ProductionMode requires Secure cookies")
		}
		if c.Security.ExposeDiagnostics {
			return errors.New("ProductionMode forbids ExposeDiagnostics")
		}
		if !strings.HasPrefix(c.Provider.RedirectURL, "https://") {
			return errors.New("ProductionMode requires an https RedirectURL")
		}
		if c.Session.TTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires Session TTL <= 30d")
		}
	}

	return nil
}

func requireAbsoluteURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New(field + " is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(field + " must be an absolute URL")
	}
	return nil
}
