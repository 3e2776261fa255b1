package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	goPortal "github.com/MrEthical07/goPortal"
	otelexport "github.com/MrEthical07/goPortal/metrics/export/otel"
	"github.com/MrEthical07/goPortal/web"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

func newServeCmd() *cobra.Command {
	var (
		addr      string
		redisAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the portal HTTP server",
		Long: `Start the portal HTTP server.

Without a Redis address an in-process miniredis is started, which is only
suitable for local development: sessions are lost on restart.

Example:
  PORTAL_CLIENT_ID=... PORTAL_CLIENT_SECRET=... PORTAL_SESSION_SECRET=... \
    portal serve --addr :3000 --redis-addr localhost:6379`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ec, err := loadEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				ec.Addr = addr
			}
			if cmd.Flags().Changed("redis-addr") {
				ec.RedisAddr = redisAddr
			}
			return runServe(cmd.Context(), ec)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":3000", "address to listen on (overrides PORTAL_ADDR)")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "redis address; empty starts an in-process miniredis (overrides PORTAL_REDIS_ADDR)")
	return cmd
}

func runServe(ctx context.Context, ec envConfig) error {
	logger, err := newLogger(ec)
	if err != nil {
		return err
	}

	rdb, closeRedis, err := connectRedis(ec.RedisAddr, ec.RedisPassword, ec.RedisDB, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	cfg := ec.portalConfig()
	builder := goPortal.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(goPortal.NewLogSink(logger.With("component", "audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	logSecurityReport(logger, engine.SecurityReport())

	if ec.OTelEnabled {
		exporter, err := otelexport.NewOTelExporter(otel.GetMeterProvider().Meter(otelexport.MeterName), engine)
		if err != nil {
			return fmt.Errorf("register otel exporter: %w", err)
		}
		defer func() { _ = exporter.Close() }()
	}

	handler, err := web.NewServer(engine, ec.webConfig(), logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("portal listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func logSecurityReport(logger *slog.Logger, r goPortal.SecurityReport) {
	logger.Info("security posture",
		"production_mode", r.ProductionMode,
		"cookie_secure", r.CookieSecure,
		"cookie_samesite", r.CookieSameSite,
		"cookie_key_rotation", r.CookieKeyRotation,
		"session_ttl", r.SessionTTL,
		"callback_throttle", r.CallbackThrottleActive,
		"max_callback_failures", r.MaxCallbackFailures,
		"diagnostics_exposed", r.DiagnosticsExposed,
		"catalog_enabled", r.CatalogEnabled,
		"audit_enabled", r.AuditEnabled,
	)
	for _, code := range r.LintWarnings {
		logger.Warn("configuration warning", "code", code)
	}
}

func newCheckConfigCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate PORTAL_* configuration and print lint warnings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ec, err := loadEnv()
			if err != nil {
				return err
			}
			cfg := ec.portalConfig()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			warnings := cfg.Lint()
			for _, w := range warnings {
				fmt.Fprintf(out, "%-5s %-28s %s\n", w.Severity, w.Code, w.Message)
			}
			if strict {
				if err := warnings.AsError(goPortal.LintWarn); err != nil {
					return err
				}
			}
			fmt.Fprintln(out, "configuration ok")
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on WARN or HIGH lint findings")
	return cmd
}
