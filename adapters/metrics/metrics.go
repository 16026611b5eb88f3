// Package metrics provides Prometheus metrics for the entitlement core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for BuildSage.
type Collector struct {
	// Entitlement decisions
	QuotaChecks   *prometheus.CounterVec // tool, tier, allowed
	QuotaDenials  *prometheus.CounterVec // reason
	UsageRecorded *prometheus.CounterVec // tool, tier
	UsageFailures prometheus.Counter

	// Promotions
	Redemptions *prometheus.CounterVec // outcome

	// Billing reconciliation
	BillingEvents *prometheus.CounterVec // type, outcome

	// Storage
	StoreErrors *prometheus.CounterVec // op
}

// New creates a collector registered against reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh
// prometheus.NewRegistry to avoid duplicate registration panics.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		QuotaChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buildsage",
				Name:      "quota_checks_total",
				Help:      "Entitlement checks evaluated",
			},
			[]string{"tool", "tier", "allowed"},
		),
		QuotaDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buildsage",
				Name:      "quota_denials_total",
				Help:      "Entitlement checks denied, by reason",
			},
			[]string{"reason"},
		),
		UsageRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buildsage",
				Name:      "usage_recorded_total",
				Help:      "Usage increments written after successful tool calls",
			},
			[]string{"tool", "tier"},
		),
		UsageFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "buildsage",
				Name:      "usage_record_failures_total",
				Help:      "Usage increments that failed and were swallowed",
			},
		),
		Redemptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buildsage",
				Name:      "promotion_redemptions_total",
				Help:      "Promotion redemption attempts, by outcome",
			},
			[]string{"outcome"},
		),
		BillingEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buildsage",
				Name:      "billing_events_total",
				Help:      "Billing processor events received, by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buildsage",
				Name:      "store_errors_total",
				Help:      "Entitlement store failures, by operation",
			},
			[]string{"op"},
		),
	}
}
