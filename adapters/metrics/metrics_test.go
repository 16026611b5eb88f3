package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.QuotaChecks.WithLabelValues("performance", "account", "true").Inc()
	c.QuotaChecks.WithLabelValues("performance", "account", "true").Inc()
	c.QuotaDenials.WithLabelValues("quota_exceeded").Inc()
	c.UsageFailures.Inc()

	if got := testutil.ToFloat64(c.QuotaChecks.WithLabelValues("performance", "account", "true")); got != 2 {
		t.Errorf("quota checks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.UsageFailures); got != 1 {
		t.Errorf("usage failures = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("no metric families registered")
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Two collectors on distinct registries must not collide.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
