package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ealc/cobranza/cobranza"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		chdir(t, t.TempDir())

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "cobranza", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "cobranza.db", cfg.Database.Path)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
		assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
		assert.Equal(t, cobranza.DefaultScheduleConfig(), cfg.Schedule())
		assert.Equal(t, cobranza.DefaultRenewalConfig(), cfg.RenewalWindow())
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("COBRANZA_APP_PORT", "9090")
		t.Setenv("COBRANZA_DATABASE_PATH", ":memory:")
		t.Setenv("COBRANZA_BILLING_GRACE_DAYS", "0")
		t.Setenv("COBRANZA_BILLING_HORIZON_DAYS", "90")
		t.Setenv("COBRANZA_HTTP_WRITE_TIMEOUT", "5s")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "9090", cfg.App.Port)
		assert.Equal(t, ":memory:", cfg.Database.Path)
		assert.Equal(t, 0, cfg.Billing.GraceDays)
		assert.Equal(t, 90, cfg.Billing.HorizonDays)
		assert.Equal(t, 5*time.Second, cfg.HTTP.WriteTimeout)
	})

	t.Run("reads an explicit config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cobranza.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[app]
name = "cobranza-test"

[billing]
max_receipts = 12

[renewal]
min_days = 30
max_days = 90
`), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "cobranza-test", cfg.App.Name)
		assert.Equal(t, 12, cfg.Billing.MaxReceipts)
		assert.Equal(t, 30, cfg.Renewal.MinDays)
		assert.Equal(t, 90, cfg.Renewal.MaxDays)
		assert.Equal(t, 10, cfg.Billing.GraceDays)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Env: "development"},
			Database: DatabaseConfig{Path: "x.db"},
			Billing:  BillingConfig{GraceDays: 10, HorizonDays: 60, MaxReceipts: 36},
			Renewal:  RenewalConfig{MinDays: 45, MaxDays: 60, HighlightDays: 50},
			HTTP:     HTTPConfig{AllowedOrigins: []string{"*"}},
		}
	}
	require.NoError(t, valid().validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"negative grace", func(c *Config) { c.Billing.GraceDays = -1 }},
		{"zero horizon", func(c *Config) { c.Billing.HorizonDays = 0 }},
		{"zero max receipts", func(c *Config) { c.Billing.MaxReceipts = 0 }},
		{"inverted renewal range", func(c *Config) { c.Renewal.MinDays = 70 }},
		{"wildcard origin in production", func(c *Config) { c.App.Env = "production" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
