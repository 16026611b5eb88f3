// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/buildsage/buildsage/domain/plan"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Billing   BillingConfig   `yaml:"billing"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Plans     PlansConfig     `yaml:"plans"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite"
	DSN    string `yaml:"dsn"`
}

// BillingConfig configures the payment processor integration.
type BillingConfig struct {
	Mode          string `yaml:"mode"` // "none" or "stripe"
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
}

// BootstrapConfig configures the launch promotion that new accounts
// auto-redeem on first contact. An empty code disables it.
type BootstrapConfig struct {
	PromoCode string `yaml:"promo_code"`
	Grants    string `yaml:"grants"`
	MaxUses   int64  `yaml:"max_uses"`
}

// LimitsConfig holds the per-tool caps for one tier. Use -1 for
// unlimited.
type LimitsConfig struct {
	Performance int64 `yaml:"performance"`
	Build       int64 `yaml:"build"`
	Image       int64 `yaml:"image"`
	Community   int64 `yaml:"community"`
}

// PlansConfig configures the quota limit tables. Tiers not listed keep
// their built-in defaults.
type PlansConfig struct {
	Anonymous *LimitsConfig           `yaml:"anonymous,omitempty"`
	Tiers     map[string]LimitsConfig `yaml:"tiers,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LimitTable builds the effective limit table: built-in defaults with
// configured tiers overlaid.
func (c *Config) LimitTable() plan.LimitTable {
	table := plan.DefaultTable()
	if c.Plans.Anonymous != nil {
		table.Anonymous = c.Plans.Anonymous.toLimits()
	}
	for name, limits := range c.Plans.Tiers {
		code, ok := plan.ParseCode(name)
		if !ok {
			continue
		}
		table.Plans[code] = limits.toLimits()
	}
	return table
}

func (l LimitsConfig) toLimits() plan.Limits {
	return plan.Limits{
		Performance: l.Performance,
		Build:       l.Build,
		Image:       l.Image,
		Community:   l.Community,
	}
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for container deployments where no config file is
// mounted.
//
// Environment variables:
//
//	BUILDSAGE_SERVER_HOST        - Server host (default: 0.0.0.0)
//	BUILDSAGE_SERVER_PORT        - Server port (default: 8080)
//	BUILDSAGE_DATABASE_DSN       - Database path (default: buildsage.db)
//	BUILDSAGE_BILLING_MODE       - Billing mode: none or stripe (default: none)
//	BUILDSAGE_WEBHOOK_SECRET     - Payment webhook signing secret
//	BUILDSAGE_BOOTSTRAP_PROMO    - Launch promotion code (empty disables)
//	BUILDSAGE_BOOTSTRAP_GRANTS   - Plan granted by the launch promotion
//	BUILDSAGE_BOOTSTRAP_MAX_USES - Launch promotion redemption cap
//	BUILDSAGE_LOG_LEVEL          - Log level: debug, info, warn, error (default: info)
//	BUILDSAGE_LOG_FORMAT         - Log format: json or console (default: json)
//	BUILDSAGE_METRICS_ENABLED    - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	cfg.Metrics.Enabled = true

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies BUILDSAGE_* environment variables to the
// config. Environment variables always override file-based
// configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BUILDSAGE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("BUILDSAGE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BUILDSAGE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("BUILDSAGE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("BUILDSAGE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("BUILDSAGE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	if v := os.Getenv("BUILDSAGE_BILLING_MODE"); v != "" {
		cfg.Billing.Mode = v
	}
	if v := os.Getenv("BUILDSAGE_WEBHOOK_SECRET"); v != "" {
		cfg.Billing.WebhookSecret = v
	}

	if v := os.Getenv("BUILDSAGE_BOOTSTRAP_PROMO"); v != "" {
		cfg.Bootstrap.PromoCode = v
	}
	if v := os.Getenv("BUILDSAGE_BOOTSTRAP_GRANTS"); v != "" {
		cfg.Bootstrap.Grants = v
	}
	if v := os.Getenv("BUILDSAGE_BOOTSTRAP_MAX_USES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Bootstrap.MaxUses = n
		}
	}

	if v := os.Getenv("BUILDSAGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BUILDSAGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("BUILDSAGE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("BUILDSAGE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "buildsage.db"
	}

	if cfg.Billing.Mode == "" {
		cfg.Billing.Mode = "none"
	}

	if cfg.Bootstrap.PromoCode != "" {
		if cfg.Bootstrap.Grants == "" {
			cfg.Bootstrap.Grants = string(plan.CodePlus)
		}
		if cfg.Bootstrap.MaxUses == 0 {
			cfg.Bootstrap.MaxUses = 50
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be 'sqlite', got %q", cfg.Database.Driver)
	}

	validBillingModes := map[string]bool{"none": true, "stripe": true}
	if !validBillingModes[cfg.Billing.Mode] {
		return fmt.Errorf("billing.mode must be 'none' or 'stripe', got %q", cfg.Billing.Mode)
	}
	if cfg.Billing.Mode == "stripe" && cfg.Billing.WebhookSecret == "" {
		return fmt.Errorf("billing.webhook_secret is required when billing.mode is 'stripe'")
	}

	if cfg.Bootstrap.PromoCode != "" {
		if _, ok := plan.ParseCode(cfg.Bootstrap.Grants); !ok {
			return fmt.Errorf("bootstrap.grants must be a known plan, got %q", cfg.Bootstrap.Grants)
		}
		if cfg.Bootstrap.MaxUses < 1 {
			return fmt.Errorf("bootstrap.max_uses must be positive, got %d", cfg.Bootstrap.MaxUses)
		}
	}

	for name := range cfg.Plans.Tiers {
		if _, ok := plan.ParseCode(name); !ok {
			return fmt.Errorf("plans.tiers: unknown plan %q", name)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", cfg.Logging.Level)
	}

	return nil
}
