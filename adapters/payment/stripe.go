// Package payment provides payment processor adapters. The Stripe
// adapter verifies webhook signatures and translates processor events
// into domain billing events before they reach the reconciler.
package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/buildsage/buildsage/domain/billing"
	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/ports"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrIgnoredEvent marks processor event types the reconciler does not
// consume. Handlers acknowledge these without applying anything.
var ErrIgnoredEvent = errors.New("ignored event type")

// StripeWebhook parses Stripe webhook deliveries.
type StripeWebhook struct {
	secret string
}

// NewStripeWebhook creates a parser bound to an endpoint signing secret.
func NewStripeWebhook(secret string) *StripeWebhook {
	return &StripeWebhook{secret: secret}
}

// Parse verifies the signature and translates the payload. Unsigned or
// tampered payloads fail here and never reach the reconciler. The
// endpoint's Stripe API version is not pinned to the library's, so
// version mismatch is not treated as tampering.
func (p *StripeWebhook) Parse(payload []byte, signature string) (billing.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return billing.Event{}, fmt.Errorf("verify webhook: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(event.Data.Raw, &data); err != nil {
		return billing.Event{}, fmt.Errorf("decode webhook object: %w", err)
	}

	return translate(event.ID, string(event.Type), data)
}

// translate maps a verified Stripe event to a domain billing event.
func translate(id, eventType string, data map[string]any) (billing.Event, error) {
	switch eventType {
	case "checkout.session.completed":
		ev := billing.Event{
			ID:          id,
			Type:        billing.EventCheckoutCompleted,
			CustomerRef: str(data["customer"]),
		}
		if meta, ok := data["metadata"].(map[string]any); ok {
			ev.AccountID = str(meta["account_id"])
			if code, ok := plan.ParseCode(str(meta["plan"])); ok {
				ev.PlanCode = code
			}
		}
		return ev, nil

	case "customer.subscription.updated":
		ev := billing.Event{
			ID:          id,
			Type:        billing.EventSubscriptionUpdated,
			CustomerRef: str(data["customer"]),
			Status:      str(data["status"]),
		}
		if code, ok := plan.ParseCode(subscriptionPlan(data)); ok {
			ev.PlanCode = code
		}
		if end, ok := data["current_period_end"].(float64); ok && end > 0 {
			t := time.Unix(int64(end), 0).UTC()
			ev.PeriodEnd = &t
		}
		return ev, nil

	case "customer.subscription.deleted":
		return billing.Event{
			ID:          id,
			Type:        billing.EventSubscriptionDeleted,
			CustomerRef: str(data["customer"]),
		}, nil

	case "invoice.payment_succeeded":
		ev := billing.Event{
			ID:          id,
			Type:        billing.EventPaymentSucceeded,
			CustomerRef: str(data["customer"]),
			InvoiceRef:  str(data["id"]),
		}
		if cents, ok := data["amount_paid"].(float64); ok {
			ev.AmountCents = int64(cents)
		}
		return ev, nil

	case "invoice.payment_failed":
		return billing.Event{
			ID:          id,
			Type:        billing.EventPaymentFailed,
			CustomerRef: str(data["customer"]),
			InvoiceRef:  str(data["id"]),
		}, nil
	}

	return billing.Event{}, fmt.Errorf("%w: %s", ErrIgnoredEvent, eventType)
}

// subscriptionPlan digs the plan code out of the subscription's first
// line item price metadata.
func subscriptionPlan(data map[string]any) string {
	items, ok := data["items"].(map[string]any)
	if !ok {
		return ""
	}
	list, ok := items["data"].([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	item, ok := list[0].(map[string]any)
	if !ok {
		return ""
	}
	price, ok := item["price"].(map[string]any)
	if !ok {
		return ""
	}
	if meta, ok := price["metadata"].(map[string]any); ok {
		return str(meta["plan"])
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Ensure interface compliance.
var _ ports.WebhookParser = (*StripeWebhook)(nil)
