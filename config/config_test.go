package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/buildsage/buildsage/config"
	"github.com/buildsage/buildsage/domain/plan"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 15s

database:
  driver: "sqlite"
  dsn: ":memory:"

billing:
  mode: "stripe"
  webhook_secret: "whsec_test"

bootstrap:
  promo_code: "FIRST50"
  grants: "PLUS"
  max_uses: 50
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Billing.WebhookSecret != "whsec_test" {
		t.Errorf("WebhookSecret = %s, want whsec_test", cfg.Billing.WebhookSecret)
	}
	if cfg.Bootstrap.PromoCode != "FIRST50" {
		t.Errorf("PromoCode = %s, want FIRST50", cfg.Bootstrap.PromoCode)
	}
	if cfg.Bootstrap.MaxUses != 50 {
		t.Errorf("MaxUses = %d, want 50", cfg.Bootstrap.MaxUses)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "server:\n  port: 8080\n")

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("default Database.Driver = %s, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "buildsage.db" {
		t.Errorf("default Database.DSN = %s, want buildsage.db", cfg.Database.DSN)
	}
	if cfg.Billing.Mode != "none" {
		t.Errorf("default Billing.Mode = %s, want none", cfg.Billing.Mode)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %s, want info", cfg.Logging.Level)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_BootstrapDefaults(t *testing.T) {
	cfg := writeAndLoad(t, "bootstrap:\n  promo_code: \"LAUNCH\"\n")

	if cfg.Bootstrap.Grants != "PLUS" {
		t.Errorf("default Grants = %s, want PLUS", cfg.Bootstrap.Grants)
	}
	if cfg.Bootstrap.MaxUses != 50 {
		t.Errorf("default MaxUses = %d, want 50", cfg.Bootstrap.MaxUses)
	}
}

func TestLimitTable_DefaultsWhenUnset(t *testing.T) {
	cfg := writeAndLoad(t, "server:\n  port: 8080\n")

	table := cfg.LimitTable()
	if got := table.LimitFor(plan.CodeFree, plan.ToolImage); got != 5 {
		t.Errorf("FREE image limit = %d, want 5", got)
	}
	if got := table.AnonymousLimitFor(plan.ToolCommunity); got != 0 {
		t.Errorf("anonymous community limit = %d, want 0", got)
	}
}

func TestLimitTable_Overrides(t *testing.T) {
	content := `
plans:
  anonymous:
    performance: 2
    build: 2
    image: 4
    community: 0
  tiers:
    FREE:
      performance: 10
      build: 10
      image: 10
      community: 50
`
	cfg := writeAndLoad(t, content)

	table := cfg.LimitTable()
	if got := table.LimitFor(plan.CodeFree, plan.ToolPerformance); got != 10 {
		t.Errorf("FREE performance limit = %d, want 10", got)
	}
	if got := table.AnonymousLimitFor(plan.ToolImage); got != 4 {
		t.Errorf("anonymous image limit = %d, want 4", got)
	}
	// Unconfigured tiers keep their defaults.
	if got := table.LimitFor(plan.CodePro, plan.ToolPerformance); got != 100 {
		t.Errorf("PRO performance limit = %d, want 100", got)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	os.Setenv("TEST_WEBHOOK_SECRET", "whsec_from_env")
	defer os.Unsetenv("TEST_WEBHOOK_SECRET")

	content := `
billing:
  mode: "stripe"
  webhook_secret: "${TEST_WEBHOOK_SECRET}"
`
	cfg := writeAndLoad(t, content)

	if cfg.Billing.WebhookSecret != "whsec_from_env" {
		t.Errorf("WebhookSecret = %s, want whsec_from_env", cfg.Billing.WebhookSecret)
	}
}

func TestLoad_StripeWithoutSecret(t *testing.T) {
	_, err := writeAndLoadErr(t, "billing:\n  mode: \"stripe\"\n")
	if err == nil {
		t.Fatal("expected error for stripe mode without webhook secret")
	}
}

func TestLoad_InvalidBillingMode(t *testing.T) {
	_, err := writeAndLoadErr(t, "billing:\n  mode: \"paddle\"\n")
	if err == nil {
		t.Fatal("expected error for unknown billing.mode")
	}
}

func TestLoad_UnknownBootstrapPlan(t *testing.T) {
	content := `
bootstrap:
  promo_code: "LAUNCH"
  grants: "MEGA"
`
	_, err := writeAndLoadErr(t, content)
	if err == nil {
		t.Fatal("expected error for unknown bootstrap plan")
	}
}

func TestLoad_UnknownTierName(t *testing.T) {
	content := `
plans:
  tiers:
    GOLD:
      performance: 1
`
	_, err := writeAndLoadErr(t, content)
	if err == nil {
		t.Fatal("expected error for unknown tier name")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	_, err := writeAndLoadErr(t, "logging:\n  level: \"loud\"\n")
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := writeAndLoadErr(t, "server:\n  port: [\n")
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("BUILDSAGE_SERVER_PORT", "9999")
	os.Setenv("BUILDSAGE_DATABASE_DSN", "/tmp/env-test.db")
	os.Setenv("BUILDSAGE_LOG_LEVEL", "debug")
	os.Setenv("BUILDSAGE_BOOTSTRAP_PROMO", "FIRST50")
	defer func() {
		os.Unsetenv("BUILDSAGE_SERVER_PORT")
		os.Unsetenv("BUILDSAGE_DATABASE_DSN")
		os.Unsetenv("BUILDSAGE_LOG_LEVEL")
		os.Unsetenv("BUILDSAGE_BOOTSTRAP_PROMO")
	}()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Database.DSN != "/tmp/env-test.db" {
		t.Errorf("Database.DSN = %s, want /tmp/env-test.db", cfg.Database.DSN)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
	if cfg.Bootstrap.PromoCode != "FIRST50" {
		t.Errorf("Bootstrap.PromoCode = %s, want FIRST50", cfg.Bootstrap.PromoCode)
	}
	if cfg.Bootstrap.Grants != "PLUS" {
		t.Errorf("Bootstrap.Grants = %s, want PLUS (default)", cfg.Bootstrap.Grants)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	os.Setenv("BUILDSAGE_SERVER_PORT", "7777")
	os.Setenv("BUILDSAGE_LOG_LEVEL", "error")
	defer func() {
		os.Unsetenv("BUILDSAGE_SERVER_PORT")
		os.Unsetenv("BUILDSAGE_LOG_LEVEL")
	}()

	content := `
server:
  port: 8080
logging:
  level: "info"
database:
  dsn: "file.db"
`
	cfg := writeAndLoad(t, content)

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (env override)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %s, want error (env override)", cfg.Logging.Level)
	}
	if cfg.Database.DSN != "file.db" {
		t.Errorf("Database.DSN = %s, want file.db (from file)", cfg.Database.DSN)
	}
}

func TestEnvOverrides_InvalidValues(t *testing.T) {
	os.Setenv("BUILDSAGE_SERVER_PORT", "not-a-number")
	os.Setenv("BUILDSAGE_SERVER_READ_TIMEOUT", "not-a-duration")
	defer func() {
		os.Unsetenv("BUILDSAGE_SERVER_PORT")
		os.Unsetenv("BUILDSAGE_SERVER_READ_TIMEOUT")
	}()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080 (default)", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s (default)", cfg.Server.ReadTimeout)
	}
}

func TestLoadWithFallback_FileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}
}

func TestLoadWithFallback_EnvOnly(t *testing.T) {
	os.Setenv("BUILDSAGE_SERVER_PORT", "6060")
	defer os.Unsetenv("BUILDSAGE_SERVER_PORT")

	cfg, err := config.LoadWithFallback("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Server.Port != 6060 {
		t.Errorf("Server.Port = %d, want 6060", cfg.Server.Port)
	}
}

// Helpers

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return config.Load(path)
}
