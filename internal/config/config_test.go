package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SHOPIFY_WEBHOOK_SECRET", "shpss_test_secret")
	t.Setenv("DRY_RUN", "true")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite://quoting.db", cfg.DatabaseURL)
	require.Equal(t, "omni", cfg.Cin7Target)
	require.Equal(t, "AUD", cfg.DefaultCurrency)
	require.Equal(t, 0.10, cfg.DefaultTaxRate)
	require.Equal(t, 3, cfg.RatePerSecond)
	require.Equal(t, 60, cfg.RatePerMinute)
	require.Equal(t, 4, cfg.MaxAttempts)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestVerboseForcesDebugLevel(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VERBOSE_LOGGING", "true")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateRequiresWebhookSecret(t *testing.T) {
	t.Setenv("SHOPIFY_WEBHOOK_SECRET", "")
	t.Setenv("DRY_RUN", "true")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "SHOPIFY_WEBHOOK_SECRET")
}

func TestValidateRequiresOmniCredentials(t *testing.T) {
	t.Setenv("SHOPIFY_WEBHOOK_SECRET", "shpss_test_secret")
	t.Setenv("DRY_RUN", "false")
	t.Setenv("CIN7_TARGET", "omni")
	t.Setenv("CIN7_API_BASE_URL", "")
	t.Setenv("CIN7_API_USERNAME", "")
	t.Setenv("CIN7_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejectsUnknownTarget(t *testing.T) {
	t.Setenv("SHOPIFY_WEBHOOK_SECRET", "shpss_test_secret")
	t.Setenv("DRY_RUN", "false")
	t.Setenv("CIN7_TARGET", "legacy")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "CIN7_TARGET")
}

func TestDryRunSkipsCredentialChecks(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CIN7_API_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.DryRun)
}
