package goPortal

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/goPortal/catalog"
	"github.com/MrEthical07/goPortal/cookie"
	"github.com/MrEthical07/goPortal/internal/rate"
	"github.com/MrEthical07/goPortal/provider"
	"github.com/MrEthical07/goPortal/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder can be used for exactly one
// successful Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *slog.Logger

	provider  ProviderClient
	gateway   catalog.Gateway
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used by the session store and the callback throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Without one the engine logs nothing.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithProviderClient replaces the HTTP login provider client built from
// Config.Provider.
func (b *Builder) WithProviderClient(p ProviderClient) *Builder {
	b.provider = p
	return b
}

// WithCatalogGateway replaces the Stripe gateway built from Config.Catalog.
// Config.Catalog.Enabled must still be set.
func (b *Builder) WithCatalogGateway(gw catalog.Gateway) *Builder {
	b.gateway = gw
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. No network
// call is made.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// -------- COOKIES --------
	cookies, err := cookie.NewManager(cookie.Config{
		Name:          cfg.Cookie.Name,
		Secret:        cloneBytes(cfg.Cookie.Secret),
		Issuer:        cfg.Cookie.Issuer,
		Leeway:        cfg.Cookie.Leeway,
		Path:          cfg.Cookie.Path,
		Secure:        cfg.Cookie.Secure,
		SameSite:      cfg.Cookie.SameSite,
		KeyID:         cfg.Cookie.KeyID,
		VerifySecrets: cfg.Cookie.VerifySecrets,
	})
	if err != nil {
		return nil, err
	}

	// -------- PROVIDER --------
	prov := b.provider
	if prov == nil {
		pc, err := provider.New(provider.Config{
			ClientID:     cfg.Provider.ClientID,
			ClientSecret: cfg.Provider.ClientSecret,
			RedirectURL:  cfg.Provider.RedirectURL,
			Scope:        cfg.Provider.Scope,
			AuthURL:      cfg.Provider.AuthURL,
			TokenURL:     cfg.Provider.TokenURL,
			APIBaseURL:   cfg.Provider.APIBaseURL,
			HTTPClient:   &http.Client{Timeout: cfg.Provider.Timeout},
		})
		if err != nil {
			return nil, err
		}
		prov = pc
	}

	// -------- CATALOG --------
	var svc *catalog.Service
	if cfg.Catalog.Enabled {
		gw := b.gateway
		if gw == nil {
			sg, err := catalog.NewStripeGateway(catalog.StripeConfig{
				SecretKey:  cfg.Catalog.SecretKey,
				APIBaseURL: cfg.Catalog.APIBaseURL,
				HTTPClient: &http.Client{Timeout: cfg.Provider.Timeout},
			})
			if err != nil {
				return nil, err
			}
			gw = sg
		}
		svc, err = catalog.NewService(gw, catalog.Config{
			PageSize:   cfg.Catalog.PageSize,
			SuccessURL: cfg.Catalog.SuccessURL,
			CancelURL:  cfg.Catalog.CancelURL,
		})
		if err != nil {
			return nil, err
		}
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.TTL),
		cookies:      cookies,
		provider:     prov,
		catalog:      svc,
		logger:       logger,
	}

	if cfg.Security.EnableCallbackThrottle {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			MaxCallbackFailures:      cfg.Security.MaxCallbackFailures,
			CallbackCooldownDuration: cfg.Security.CallbackCooldownDuration,
		})
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
