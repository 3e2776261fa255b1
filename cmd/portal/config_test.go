package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("PORTAL_CLIENT_ID", "client-1")
	t.Setenv("PORTAL_CLIENT_SECRET", "client-secret")
	t.Setenv("PORTAL_SESSION_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoadEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	ec, err := loadEnv()
	require.NoError(t, err)

	assert.Equal(t, ":3000", ec.Addr)
	assert.Equal(t, "identify guilds", ec.Scope)
	assert.Equal(t, 168*time.Hour, ec.SessionTTL)
	assert.True(t, ec.CallbackThrottle)
	assert.True(t, ec.Metrics)

	cfg := ec.portalConfig()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Catalog.Enabled, "catalog stays off without a payment key")
	assert.Equal(t, "client-1", cfg.Provider.ClientID)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORTAL_STRIPE_SECRET_KEY", "sk_test_1")
	t.Setenv("PORTAL_SESSION_TTL", "24h")
	t.Setenv("PORTAL_SESSION_KEY_ID", "k2")
	t.Setenv("PORTAL_SESSION_VERIFY_SECRETS", "k1:abcdefabcdefabcdefabcdefabcdefab")
	t.Setenv("PORTAL_METRICS_ENABLED", "false")
	t.Setenv("PORTAL_TRUST_PROXY", "true")

	ec, err := loadEnv()
	require.NoError(t, err)

	cfg := ec.portalConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Catalog.Enabled)
	assert.Equal(t, "sk_test_1", cfg.Catalog.SecretKey)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "k2", cfg.Cookie.KeyID)
	assert.Equal(t, []byte("abcdefabcdefabcdefabcdefabcdefab"), cfg.Cookie.VerifySecrets["k1"])
	assert.False(t, cfg.Metrics.Enabled)

	wc := ec.webConfig()
	assert.True(t, wc.DisableMetrics)
	assert.True(t, wc.TrustProxy)
}

func TestLoadEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("PORTAL_SESSION_TTL", "forever")

	_, err := loadEnv()
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	level, err := parseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	_, err = parseLevel("loud")
	assert.Error(t, err)

	_, err = newLogger(envConfig{LogLevel: "info", LogFormat: "xml"})
	assert.Error(t, err)

	logger, err := newLogger(envConfig{LogLevel: "warn", LogFormat: "text"})
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestCheckConfigCommand(t *testing.T) {
	setRequiredEnv(t)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check-config"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "cookie_insecure")
	assert.Contains(t, out.String(), "configuration ok")

	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check-config", "--strict"})
	assert.Error(t, cmd.Execute())
}

func TestCheckConfigCommandRejectsMissingCredentials(t *testing.T) {
	t.Setenv("PORTAL_CLIENT_ID", "")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"check-config"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid configuration"))
}

func TestLoadtestAgainstMiniredis(t *testing.T) {
	var out bytes.Buffer
	err := runLoadtest(context.Background(), &out, loadtestOptions{
		sessions:    20,
		memberships: 3,
		concurrency: 4,
		ops:         40,
		prefix:      "lt",
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "lookup: ops=40 failures=0")
	assert.Contains(t, out.String(), "churn: ops=40 failures=0")
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, time.Duration(1), percentile(samples, 0))
	assert.Equal(t, time.Duration(5), percentile(samples, 50))
	assert.Equal(t, time.Duration(10), percentile(samples, 100))
	assert.Zero(t, percentile(nil, 50))
}
