package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/MrEthical07/goPortal/web"
	"github.com/caarlos0/env/v11"
)

// envConfig holds the raw process configuration read from PORTAL_* variables.
type envConfig struct {
	Addr          string `env:"PORTAL_ADDR" envDefault:":3000"`
	RedisAddr     string `env:"PORTAL_REDIS_ADDR"`
	RedisPassword string `env:"PORTAL_REDIS_PASSWORD"`
	RedisDB       int    `env:"PORTAL_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"PORTAL_REDIS_PREFIX" envDefault:"ps"`

	LogLevel  string `env:"PORTAL_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PORTAL_LOG_FORMAT" envDefault:"json"`

	ProductionMode bool `env:"PORTAL_PRODUCTION_MODE"`

	ClientID     string        `env:"PORTAL_CLIENT_ID"`
	ClientSecret string        `env:"PORTAL_CLIENT_SECRET"`
	RedirectURL  string        `env:"PORTAL_REDIRECT_URL" envDefault:"http://localhost:3000/callback"`
	Scope        string        `env:"PORTAL_SCOPE" envDefault:"identify guilds"`
	CDNBaseURL   string        `env:"PORTAL_CDN_BASE_URL" envDefault:"https://cdn.discordapp.com"`
	HTTPTimeout  time.Duration `env:"PORTAL_PROVIDER_TIMEOUT" envDefault:"10s"`

	SessionSecret  string            `env:"PORTAL_SESSION_SECRET"`
	SessionKeyID   string            `env:"PORTAL_SESSION_KEY_ID"`
	VerifySecrets  map[string]string `env:"PORTAL_SESSION_VERIFY_SECRETS" envSeparator:"," envKeyValSeparator:":"`
	SessionTTL     time.Duration     `env:"PORTAL_SESSION_TTL" envDefault:"168h"`
	MaxMemberships int               `env:"PORTAL_MAX_MEMBERSHIPS" envDefault:"0"`
	CookieSecure   bool              `env:"PORTAL_COOKIE_SECURE"`

	StripeSecretKey string `env:"PORTAL_STRIPE_SECRET_KEY"`
	SuccessURL      string `env:"PORTAL_CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:3000/success.html"`
	CancelURL       string `env:"PORTAL_CHECKOUT_CANCEL_URL" envDefault:"http://localhost:3000/cancel.html"`

	ExposeDiagnostics   bool          `env:"PORTAL_EXPOSE_DIAGNOSTICS"`
	TrustProxy          bool          `env:"PORTAL_TRUST_PROXY"`
	CallbackThrottle    bool          `env:"PORTAL_CALLBACK_THROTTLE" envDefault:"true"`
	MaxCallbackFailures int           `env:"PORTAL_MAX_CALLBACK_FAILURES" envDefault:"10"`
	CallbackCooldown    time.Duration `env:"PORTAL_CALLBACK_COOLDOWN" envDefault:"10m"`

	AuditEnabled bool `env:"PORTAL_AUDIT_ENABLED"`
	OTelEnabled  bool `env:"PORTAL_OTEL_ENABLED"`
	Metrics      bool `env:"PORTAL_METRICS_ENABLED" envDefault:"true"`

	ShutdownTimeout time.Duration `env:"PORTAL_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func loadEnv() (envConfig, error) {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return envConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// portalConfig maps the process configuration onto the engine config.
func (c envConfig) portalConfig() goPortal.Config {
	cfg := goPortal.DefaultConfig()

	cfg.Provider.ClientID = c.ClientID
	cfg.Provider.ClientSecret = c.ClientSecret
	cfg.Provider.RedirectURL = c.RedirectURL
	cfg.Provider.Scope = c.Scope
	cfg.Provider.CDNBaseURL = c.CDNBaseURL
	cfg.Provider.Timeout = c.HTTPTimeout

	cfg.Session.RedisPrefix = c.RedisPrefix
	cfg.Session.TTL = c.SessionTTL
	cfg.Session.MaxMemberships = c.MaxMemberships

	cfg.Cookie.Secret = []byte(c.SessionSecret)
	cfg.Cookie.Secure = c.CookieSecure
	cfg.Cookie.KeyID = c.SessionKeyID
	if len(c.VerifySecrets) > 0 {
		cfg.Cookie.VerifySecrets = make(map[string][]byte, len(c.VerifySecrets))
		for kid, secret := range c.VerifySecrets {
			cfg.Cookie.VerifySecrets[kid] = []byte(secret)
		}
	}

	if c.StripeSecretKey != "" {
		cfg.Catalog.Enabled = true
		cfg.Catalog.SecretKey = c.StripeSecretKey
		cfg.Catalog.SuccessURL = c.SuccessURL
		cfg.Catalog.CancelURL = c.CancelURL
	}

	cfg.Security.ProductionMode = c.ProductionMode
	cfg.Security.ExposeDiagnostics = c.ExposeDiagnostics
	cfg.Security.EnableCallbackThrottle = c.CallbackThrottle
	cfg.Security.MaxCallbackFailures = c.MaxCallbackFailures
	cfg.Security.CallbackCooldownDuration = c.CallbackCooldown

	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = c.Metrics

	cfg.Server.Addr = c.Addr
	cfg.Server.ShutdownTimeout = c.ShutdownTimeout
	return cfg
}

func (c envConfig) webConfig() web.Config {
	return web.Config{
		CDNBaseURL:     c.CDNBaseURL,
		TrustProxy:     c.TrustProxy,
		DisableMetrics: !c.Metrics,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func newLogger(c envConfig) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.LogFormat) {
	case "json", "":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", c.LogFormat)
	}
}
