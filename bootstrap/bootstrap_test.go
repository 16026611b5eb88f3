package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/buildsage/buildsage/config"
	"github.com/buildsage/buildsage/domain/identity"
	"github.com/buildsage/buildsage/domain/plan"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "test.db")
	cfg.Server.Port = 0
	cfg.Logging.Level = "error"
	cfg.Metrics.Enabled = true
	cfg.Bootstrap.PromoCode = "FIRST50"
	cfg.Bootstrap.Grants = "PLUS"
	cfg.Bootstrap.MaxUses = 50
	return cfg
}

func TestNew_WiresServices(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Shutdown()

	if a.Entitlements == nil || a.Signup == nil || a.Promotions == nil || a.Billing == nil {
		t.Fatal("services not wired")
	}

	// Bootstrap promotion should be seeded and redeemable end to end.
	result := a.Entitlements.Evaluate(context.Background(),
		identity.Account("acc-1", "a@example.com"), plan.ToolPerformance)
	if !result.Allowed {
		t.Fatalf("first check denied: %+v", result)
	}
	// FIRST50 grants PLUS, so the new account gets the PLUS limit.
	if result.Limit != 25 {
		t.Errorf("limit = %d, want 25 (PLUS via launch promotion)", result.Limit)
	}
}

func TestNew_ServesAPI(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Shutdown()

	srv := httptest.NewServer(a.HTTPServer.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}

func TestNew_NoWebhookRouteWithoutBilling(t *testing.T) {
	cfg := testConfig(t)
	cfg.Billing.Mode = "none"

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Shutdown()

	srv := httptest.NewServer(a.HTTPServer.Handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhooks/payment", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("webhook route should be absent, got status %d", resp.StatusCode)
	}
}
