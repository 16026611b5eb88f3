// Package billing provides billing event value types and pure mapping
// from processor subscription state to local plan codes.
package billing

import (
	"errors"
	"time"

	"github.com/buildsage/buildsage/domain/plan"
)

// EventType tags the five processor event shapes the reconciler handles.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.completed"
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventSubscriptionDeleted EventType = "subscription.deleted"
	EventPaymentSucceeded    EventType = "payment.succeeded"
	EventPaymentFailed       EventType = "payment.failed"
)

// StatusActive is the processor status that keeps a paid plan in force.
const StatusActive = "active"

// ErrMissingMetadata is returned when a required event field is absent.
// These events indicate a customer's paid entitlement may be stuck, so
// they are surfaced to operators rather than dropped.
var ErrMissingMetadata = errors.New("billing event missing required metadata")

// Event is a processor-pushed subscription lifecycle event (value type).
// ID is the processor's globally unique event id, used for replay
// detection. Which other fields are populated depends on Type.
type Event struct {
	ID          string
	Type        EventType
	AccountID   string     // checkout-completed: local account being upgraded
	CustomerRef string     // processor customer reference (lookup key after checkout)
	PlanCode    plan.Code  // checkout-completed / subscription-updated
	Status      string     // subscription-updated: processor subscription status
	PeriodEnd   *time.Time // subscription-updated: current period end
	InvoiceRef  string     // payment events
	AmountCents int64      // payment-succeeded
}

// Validate checks that the fields a given event type requires are set.
// This is a PURE function.
func (e Event) Validate() error {
	if e.ID == "" {
		return ErrMissingMetadata
	}
	switch e.Type {
	case EventCheckoutCompleted:
		if e.AccountID == "" || e.PlanCode == "" {
			return ErrMissingMetadata
		}
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		if e.CustomerRef == "" {
			return ErrMissingMetadata
		}
	case EventPaymentSucceeded, EventPaymentFailed:
		// Observational only; no required fields beyond the id.
	default:
		return ErrMissingMetadata
	}
	return nil
}

// EffectivePlan maps a subscription-updated event to the plan the
// account should hold: the event's plan while the subscription is
// active, FREE otherwise (past_due, canceled, unpaid all lose headroom).
// This is a PURE function.
func EffectivePlan(status string, code plan.Code) plan.Code {
	if status == StatusActive && code != "" {
		return code
	}
	return plan.CodeFree
}
