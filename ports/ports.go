// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/buildsage/buildsage/domain/billing"
	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/domain/promo"
	"github.com/buildsage/buildsage/domain/quota"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint is violated.
// Callers use it to detect lost creation races: treat as "already
// exists" and re-read.
var ErrDuplicate = errors.New("already exists")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Entitlement Store Ports
// -----------------------------------------------------------------------------

// Account is the durable record for an authenticated user.
type Account struct {
	ID           string
	Email        string
	Plan         plan.Code
	PlanRenewsAt *time.Time
	BillingRef   string // processor customer reference, empty until first checkout
	Usage        quota.Usage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Device is the durable record for an anonymous fingerprint.
type Device struct {
	Fingerprint string
	Usage       quota.Usage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AccountStore persists account entitlement state.
//
// ResetUsageIfStale and IncrementUsage are the only counter mutations;
// both must be atomic at the storage layer so concurrent evaluators
// never lose an update or double-reset.
type AccountStore interface {
	// Get retrieves an account by ID.
	Get(ctx context.Context, id string) (Account, error)

	// GetByEmail retrieves an account by email.
	GetByEmail(ctx context.Context, email string) (Account, error)

	// GetByBillingRef retrieves an account by processor customer reference.
	GetByBillingRef(ctx context.Context, ref string) (Account, error)

	// Create stores a new account. Returns ErrDuplicate if the ID or
	// email already exists.
	Create(ctx context.Context, a Account) error

	// IncrementUsage adds 1 to the counter for tool, atomically.
	IncrementUsage(ctx context.Context, id string, tool plan.ToolType) error

	// ResetUsageIfStale zeroes all counters and moves the reset date to
	// now, but only if the stored reset date still equals observedResetAt.
	// Returns true if this call performed the reset. A false return with
	// nil error means a concurrent caller reset first (or the record
	// changed); re-read and proceed.
	ResetUsageIfStale(ctx context.Context, id string, observedResetAt, now time.Time) (bool, error)

	// SetPlan updates plan code and renewal date without touching counters.
	SetPlan(ctx context.Context, id string, code plan.Code, renewsAt *time.Time) error

	// ApplyCheckout records a completed checkout: plan code, billing
	// customer reference, renewal date, and a fresh usage cycle (all
	// counters zeroed, reset date = now). One atomic write.
	ApplyCheckout(ctx context.Context, id string, code plan.Code, billingRef string, renewsAt time.Time, now time.Time) error
}

// DeviceStore persists anonymous device entitlement state.
type DeviceStore interface {
	// Get retrieves a device by fingerprint.
	Get(ctx context.Context, fingerprint string) (Device, error)

	// Create stores a new device record. Returns ErrDuplicate if the
	// fingerprint already exists.
	Create(ctx context.Context, d Device) error

	// IncrementUsage adds 1 to the counter for tool, atomically.
	IncrementUsage(ctx context.Context, fingerprint string, tool plan.ToolType) error

	// ResetUsageIfStale mirrors AccountStore.ResetUsageIfStale.
	ResetUsageIfStale(ctx context.Context, fingerprint string, observedResetAt, now time.Time) (bool, error)
}

// -----------------------------------------------------------------------------
// Promotion Ports
// -----------------------------------------------------------------------------

// RedeemResult reports the outcome of a redemption attempt. Fail is set
// for expected refusals; a non-nil error from Redeem means storage
// failure, not refusal.
type RedeemResult struct {
	Granted plan.Code
	Fail    promo.FailReason
}

// PromotionStore persists promotions and redemptions.
type PromotionStore interface {
	// GetByCode retrieves a promotion by its code.
	GetByCode(ctx context.Context, code string) (promo.Promotion, error)

	// Create stores a new promotion. Returns ErrDuplicate if the code
	// already exists, which makes create-if-absent bootstrap idempotent.
	Create(ctx context.Context, p promo.Promotion) error

	// List returns all promotions.
	List(ctx context.Context) ([]promo.Promotion, error)

	// Redeem atomically validates the promotion, creates the redemption
	// row, increments the use count, and upgrades the account's plan
	// with renewal date renewsAt. All four steps commit or none do; the
	// unique constraint on (promotion, account) arbitrates races.
	Redeem(ctx context.Context, code, accountID, redemptionID string, renewsAt, now time.Time) (RedeemResult, error)
}

// -----------------------------------------------------------------------------
// Billing Ports
// -----------------------------------------------------------------------------

// BillingEventStore remembers processed billing event ids so replayed
// deliveries become no-ops.
type BillingEventStore interface {
	// MarkProcessed claims an event id. Returns ErrDuplicate if the id
	// was already claimed.
	MarkProcessed(ctx context.Context, eventID string, eventType billing.EventType, at time.Time) error
}

// WebhookParser verifies and translates an inbound processor webhook
// into a domain billing event at the transport boundary. Unsigned or
// tampered payloads must be rejected here, before the reconciler runs.
type WebhookParser interface {
	Parse(payload []byte, signature string) (billing.Event, error)
}
