package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildsage/buildsage/adapters/metrics"
	"github.com/buildsage/buildsage/domain/billing"
	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/ports"
	"github.com/rs/zerolog"
)

// BillingService reconciles processor-pushed subscription events into
// local plan state. Events are applied in arrival order; no causal
// reordering is attempted.
type BillingService struct {
	accounts ports.AccountStore
	events   ports.BillingEventStore
	clock    ports.Clock
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// NewBillingService creates the billing reconciler.
func NewBillingService(
	accounts ports.AccountStore,
	events ports.BillingEventStore,
	clock ports.Clock,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *BillingService {
	return &BillingService{
		accounts: accounts,
		events:   events,
		clock:    clock,
		metrics:  collector,
		logger:   logger,
	}
}

// ApplyEvent applies one processor event. Replayed event ids are
// no-ops. Malformed events return an error so the transport surfaces
// them to operators; events referencing unknown accounts are logged as
// integrity warnings and dropped, since the processor's own retries
// would only produce the same miss.
func (s *BillingService) ApplyEvent(ctx context.Context, ev billing.Event) error {
	if err := ev.Validate(); err != nil {
		s.observe(ev.Type, "malformed")
		return fmt.Errorf("billing event %q: %w", ev.ID, err)
	}

	now := s.clock.Now()

	// Claim the event id before applying. A duplicate claim means a
	// replayed delivery: acknowledge without reapplying.
	err := s.events.MarkProcessed(ctx, ev.ID, ev.Type, now)
	if errors.Is(err, ports.ErrDuplicate) {
		s.observe(ev.Type, "replay")
		s.logger.Info().
			Str("event_id", ev.ID).
			Str("type", string(ev.Type)).
			Msg("billing event already processed, skipping")
		return nil
	}
	if err != nil {
		s.observe(ev.Type, "error")
		return fmt.Errorf("claim billing event %q: %w", ev.ID, err)
	}

	switch ev.Type {
	case billing.EventCheckoutCompleted:
		err = s.applyCheckout(ctx, ev)
	case billing.EventSubscriptionUpdated:
		err = s.applySubscriptionUpdated(ctx, ev)
	case billing.EventSubscriptionDeleted:
		err = s.applySubscriptionDeleted(ctx, ev)
	case billing.EventPaymentSucceeded:
		// Observational only; a hook point for future dunning logic.
		s.logger.Info().
			Str("event_id", ev.ID).
			Str("invoice", ev.InvoiceRef).
			Int64("amount_cents", ev.AmountCents).
			Msg("payment succeeded")
	case billing.EventPaymentFailed:
		s.logger.Warn().
			Str("event_id", ev.ID).
			Str("invoice", ev.InvoiceRef).
			Str("customer_ref", ev.CustomerRef).
			Msg("payment failed")
	}

	if err != nil {
		s.observe(ev.Type, "error")
		return err
	}
	s.observe(ev.Type, "applied")
	return nil
}

// applyCheckout sets the purchased plan, records the processor customer
// reference, and starts a fresh usage cycle (fresh-start policy for new
// subscribers).
func (s *BillingService) applyCheckout(ctx context.Context, ev billing.Event) error {
	now := s.clock.Now()
	renewsAt := now.AddDate(0, 1, 0)

	err := s.accounts.ApplyCheckout(ctx, ev.AccountID, ev.PlanCode, ev.CustomerRef, renewsAt, now)
	if errors.Is(err, ports.ErrNotFound) {
		s.unknownAccount(ev, ev.AccountID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply checkout %q: %w", ev.ID, err)
	}

	s.logger.Info().
		Str("event_id", ev.ID).
		Str("account_id", ev.AccountID).
		Str("plan", string(ev.PlanCode)).
		Msg("checkout completed: plan set, usage cycle restarted")
	return nil
}

// applySubscriptionUpdated derives the effective plan from the
// processor's subscription status. Usage counters are not touched.
func (s *BillingService) applySubscriptionUpdated(ctx context.Context, ev billing.Event) error {
	acct, err := s.accounts.GetByBillingRef(ctx, ev.CustomerRef)
	if errors.Is(err, ports.ErrNotFound) {
		s.unknownAccount(ev, ev.CustomerRef)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve customer %q: %w", ev.CustomerRef, err)
	}

	newPlan := billing.EffectivePlan(ev.Status, ev.PlanCode)
	if err := s.accounts.SetPlan(ctx, acct.ID, newPlan, ev.PeriodEnd); err != nil {
		return fmt.Errorf("update plan for %q: %w", acct.ID, err)
	}

	s.logger.Info().
		Str("event_id", ev.ID).
		Str("account_id", acct.ID).
		Str("status", ev.Status).
		Str("plan", string(newPlan)).
		Msg("subscription updated")
	return nil
}

// applySubscriptionDeleted downgrades to FREE and clears the renewal
// date. The current cycle's usage stays as-is; the user only loses
// future headroom.
func (s *BillingService) applySubscriptionDeleted(ctx context.Context, ev billing.Event) error {
	acct, err := s.accounts.GetByBillingRef(ctx, ev.CustomerRef)
	if errors.Is(err, ports.ErrNotFound) {
		s.unknownAccount(ev, ev.CustomerRef)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve customer %q: %w", ev.CustomerRef, err)
	}

	if err := s.accounts.SetPlan(ctx, acct.ID, plan.CodeFree, nil); err != nil {
		return fmt.Errorf("downgrade %q: %w", acct.ID, err)
	}

	s.logger.Info().
		Str("event_id", ev.ID).
		Str("account_id", acct.ID).
		Msg("subscription deleted, account downgraded to FREE")
	return nil
}

func (s *BillingService) unknownAccount(ev billing.Event, ref string) {
	s.observe(ev.Type, "unknown_account")
	s.logger.Warn().
		Str("event_id", ev.ID).
		Str("type", string(ev.Type)).
		Str("ref", ref).
		Msg("billing event references an unknown account, dropping")
}

func (s *BillingService) observe(t billing.EventType, outcome string) {
	if s.metrics != nil {
		s.metrics.BillingEvents.WithLabelValues(string(t), outcome).Inc()
	}
}
