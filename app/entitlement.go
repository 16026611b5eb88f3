// Package app contains the use-case services that orchestrate domain
// logic over the storage ports. All I/O happens at the edges via
// injected stores; decisions are pure functions from domain packages.
package app

import (
	"context"
	"errors"

	"github.com/buildsage/buildsage/adapters/metrics"
	"github.com/buildsage/buildsage/domain/identity"
	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/domain/quota"
	"github.com/buildsage/buildsage/ports"
	"github.com/rs/zerolog"
)

// AccountProvisioner creates the account record the first time an
// identity is seen. Implemented by SignupService so first-contact
// bootstrap (promotion auto-redemption) runs exactly once.
type AccountProvisioner interface {
	EnsureAccount(ctx context.Context, accountID, email string) (ports.Account, bool, error)
}

// EntitlementService answers "may this caller run this tool now" and
// records consumption after the tool call succeeds.
type EntitlementService struct {
	accounts ports.AccountStore
	devices  ports.DeviceStore
	signup   AccountProvisioner
	limits   func() plan.LimitTable // hot-reloadable via config
	clock    ports.Clock
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// NewEntitlementService creates the entitlement service.
func NewEntitlementService(
	accounts ports.AccountStore,
	devices ports.DeviceStore,
	signup AccountProvisioner,
	limits func() plan.LimitTable,
	clock ports.Clock,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *EntitlementService {
	return &EntitlementService{
		accounts: accounts,
		devices:  devices,
		signup:   signup,
		limits:   limits,
		clock:    clock,
		metrics:  collector,
		logger:   logger,
	}
}

// Evaluate decides allow/deny for one tool invocation. It resolves the
// backing record (creating it on first sight), applies the lazy 30-day
// reset, and compares the counter against the plan limit.
//
// Storage outages split by tier: authenticated callers fail open
// (billing bounds the abuse), anonymous callers fail closed.
func (s *EntitlementService) Evaluate(ctx context.Context, id identity.Identity, tool plan.ToolType) quota.CheckResult {
	var result quota.CheckResult

	switch id.Kind() {
	case identity.KindAccount:
		result = s.evaluateAccount(ctx, id, tool)
	case identity.KindDevice:
		result = s.evaluateDevice(ctx, id.Fingerprint, tool)
	default:
		result = quota.Deny(quota.ReasonIdentityMissing, "No account or device identity was provided.")
	}

	s.observe(id, tool, result)
	return result
}

func (s *EntitlementService) evaluateAccount(ctx context.Context, id identity.Identity, tool plan.ToolType) quota.CheckResult {
	acct, err := s.resolveAccount(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		var created bool
		acct, created, err = s.signup.EnsureAccount(ctx, id.AccountID, id.Email)
		if err == nil && created {
			s.logger.Info().Str("account_id", acct.ID).Msg("account record created on first tool use")
		}
	}
	if errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrDuplicate) {
		// The store answered; the identity simply resolves to no account
		// record (email-only lookup with no match). Not an outage, so the
		// fail-open policy does not apply.
		s.logger.Warn().
			Str("account_id", id.AccountID).
			Str("email", id.Email).
			Msg("account identity resolves to no record")
		return quota.Deny(quota.ReasonAccountNotFound, "No account matches this identity. Sign in again.")
	}
	if err != nil {
		// Fail open: a paying (or payable) user is never blocked by our
		// own storage trouble.
		s.storeError("account_get", err)
		return quota.CheckResult{Allowed: true, Reason: quota.ReasonStoreUnavailable}
	}

	now := s.clock.Now()
	if quota.Stale(acct.Usage.ResetAt, now) {
		if _, err := s.accounts.ResetUsageIfStale(ctx, acct.ID, acct.Usage.ResetAt, now); err != nil {
			s.storeError("account_reset", err)
			return quota.CheckResult{Allowed: true, Reason: quota.ReasonStoreUnavailable}
		}
		// Re-read regardless of who won the conditional write; either
		// way the record now reflects the current cycle.
		acct, err = s.accounts.Get(ctx, acct.ID)
		if err != nil {
			s.storeError("account_reread", err)
			return quota.CheckResult{Allowed: true, Reason: quota.ReasonStoreUnavailable}
		}
	}

	limit := s.limits().LimitFor(acct.Plan, tool)
	return quota.Check(acct.Usage.For(tool), limit, acct.Plan, tool)
}

func (s *EntitlementService) evaluateDevice(ctx context.Context, fingerprint string, tool plan.ToolType) quota.CheckResult {
	now := s.clock.Now()

	dev, err := s.devices.Get(ctx, fingerprint)
	if errors.Is(err, ports.ErrNotFound) {
		dev = ports.Device{
			Fingerprint: fingerprint,
			Usage:       quota.Usage{ResetAt: now},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = s.devices.Create(ctx, dev)
		if errors.Is(err, ports.ErrDuplicate) {
			// A concurrent first-time caller won the creation race.
			dev, err = s.devices.Get(ctx, fingerprint)
		}
	}
	if err != nil {
		// Fail closed: no billing relationship bounds anonymous abuse.
		s.storeError("device_get", err)
		return quota.Deny(quota.ReasonStoreUnavailable, "Service is temporarily unavailable. Please try again.")
	}

	if quota.Stale(dev.Usage.ResetAt, now) {
		if _, err := s.devices.ResetUsageIfStale(ctx, fingerprint, dev.Usage.ResetAt, now); err != nil {
			s.storeError("device_reset", err)
			return quota.Deny(quota.ReasonStoreUnavailable, "Service is temporarily unavailable. Please try again.")
		}
		dev, err = s.devices.Get(ctx, fingerprint)
		if err != nil {
			s.storeError("device_reread", err)
			return quota.Deny(quota.ReasonStoreUnavailable, "Service is temporarily unavailable. Please try again.")
		}
	}

	limit := s.limits().AnonymousLimitFor(tool)
	return quota.Check(dev.Usage.For(tool), limit, "", tool)
}

// resolveAccount finds an account by id, falling back to email lookup.
func (s *EntitlementService) resolveAccount(ctx context.Context, id identity.Identity) (ports.Account, error) {
	if id.AccountID != "" {
		return s.accounts.Get(ctx, id.AccountID)
	}
	return s.accounts.GetByEmail(ctx, id.Email)
}

// RecordUsage increments the counter for tool after the gated call has
// succeeded downstream. The increment is atomic at the storage layer
// and never re-checks the limit; a pair of concurrent winners may push
// the counter one past the cap, which is the documented bounded
// overshoot. Failures are logged and swallowed so the user-visible
// success is never rolled back by bookkeeping.
func (s *EntitlementService) RecordUsage(ctx context.Context, id identity.Identity, tool plan.ToolType) {
	var err error
	tier := "account"

	switch id.Kind() {
	case identity.KindAccount:
		var acct ports.Account
		acct, err = s.resolveAccount(ctx, id)
		if err == nil {
			err = s.accounts.IncrementUsage(ctx, acct.ID, tool)
		}
	case identity.KindDevice:
		tier = "device"
		err = s.devices.IncrementUsage(ctx, id.Fingerprint, tool)
	default:
		s.logger.Warn().Msg("usage record skipped: no identity")
		return
	}

	if err != nil {
		if s.metrics != nil {
			s.metrics.UsageFailures.Inc()
		}
		s.logger.Error().Err(err).
			Str("tool", string(tool)).
			Str("tier", tier).
			Msg("failed to record usage, not failing the request")
		return
	}

	if s.metrics != nil {
		s.metrics.UsageRecorded.WithLabelValues(string(tool), tier).Inc()
	}
}

func (s *EntitlementService) observe(id identity.Identity, tool plan.ToolType, result quota.CheckResult) {
	if s.metrics == nil {
		return
	}
	tier := "none"
	switch id.Kind() {
	case identity.KindAccount:
		tier = "account"
	case identity.KindDevice:
		tier = "device"
	}
	s.metrics.QuotaChecks.WithLabelValues(string(tool), tier, boolLabel(result.Allowed)).Inc()
	if !result.Allowed {
		s.metrics.QuotaDenials.WithLabelValues(string(result.Reason)).Inc()
	}
}

func (s *EntitlementService) storeError(op string, err error) {
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
	s.logger.Error().Err(err).Str("op", op).Msg("entitlement store unavailable")
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
