package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ealc/cobranza/cobranza"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Log      LogConfig
	Billing  BillingConfig
	Renewal  RenewalConfig
	HTTP     HTTPConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig points at the SQLite file. ":memory:" keeps everything in
// process.
type DatabaseConfig struct {
	Path string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// BillingConfig bounds receipt generation.
type BillingConfig struct {
	GraceDays   int
	HorizonDays int
	MaxReceipts int
}

// RenewalConfig is the range of days-to-expiry shown by the renewal watch.
type RenewalConfig struct {
	MinDays       int
	MaxDays       int
	HighlightDays int
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with COBRANZA_ prefix (e.g., COBRANZA_BILLING_GRACE_DAYS)
// 2. The file at path, or cobranza.{toml,yaml,json} in the working directory
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cobranza")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("COBRANZA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Billing: BillingConfig{
			GraceDays:   v.GetInt("billing.grace_days"),
			HorizonDays: v.GetInt("billing.horizon_days"),
			MaxReceipts: v.GetInt("billing.max_receipts"),
		},
		Renewal: RenewalConfig{
			MinDays:       v.GetInt("renewal.min_days"),
			MaxDays:       v.GetInt("renewal.max_days"),
			HighlightDays: v.GetInt("renewal.highlight_days"),
		},
		HTTP: HTTPConfig{
			AllowedOrigins: v.GetStringSlice("http.allowed_origins"),
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cobranza")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.path", "cobranza.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	d := cobranza.DefaultScheduleConfig()
	v.SetDefault("billing.grace_days", d.GraceDays)
	v.SetDefault("billing.horizon_days", d.HorizonDays)
	v.SetDefault("billing.max_receipts", d.MaxReceipts)

	r := cobranza.DefaultRenewalConfig()
	v.SetDefault("renewal.min_days", r.MinDays)
	v.SetDefault("renewal.max_days", r.MaxDays)
	v.SetDefault("renewal.highlight_days", r.HighlightDays)

	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Billing.GraceDays < 0 {
		return fmt.Errorf("billing.grace_days cannot be negative, got %d", c.Billing.GraceDays)
	}
	if c.Billing.HorizonDays <= 0 {
		return fmt.Errorf("billing.horizon_days must be positive, got %d", c.Billing.HorizonDays)
	}
	if c.Billing.MaxReceipts <= 0 {
		return fmt.Errorf("billing.max_receipts must be positive, got %d", c.Billing.MaxReceipts)
	}
	if c.Renewal.MinDays > c.Renewal.MaxDays {
		return fmt.Errorf("renewal.min_days (%d) cannot exceed renewal.max_days (%d)",
			c.Renewal.MinDays, c.Renewal.MaxDays)
	}
	if c.App.Env == "production" {
		for _, origin := range c.HTTP.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("http.allowed_origins cannot be '*' in production (use specific origins)")
			}
		}
	}
	return nil
}

// Schedule returns the generation bounds for cobranza requests.
func (c *Config) Schedule() cobranza.ScheduleConfig {
	return cobranza.ScheduleConfig{
		GraceDays:   c.Billing.GraceDays,
		HorizonDays: c.Billing.HorizonDays,
		MaxReceipts: c.Billing.MaxReceipts,
	}
}

// RenewalWindow returns the renewal watch range.
func (c *Config) RenewalWindow() cobranza.RenewalConfig {
	return cobranza.RenewalConfig{
		MinDays:       c.Renewal.MinDays,
		MaxDays:       c.Renewal.MaxDays,
		HighlightDays: c.Renewal.HighlightDays,
	}
}
