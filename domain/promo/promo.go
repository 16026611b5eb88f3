// Package promo provides promotion value types and pure validation.
// The transactional redemption itself lives behind the PromotionStore
// port; this package only decides whether a redemption may proceed.
package promo

import (
	"time"

	"github.com/buildsage/buildsage/domain/plan"
)

// FailReason classifies why a redemption was refused. These are expected
// outcomes, not errors.
type FailReason string

const (
	FailNone            FailReason = ""
	FailNotFound        FailReason = "not_found"
	FailInactive        FailReason = "inactive"
	FailExpired         FailReason = "expired"
	FailLimitReached    FailReason = "limit_reached"
	FailAlreadyRedeemed FailReason = "already_redeemed"
)

// Promotion is a one-time plan upgrade campaign (value type).
type Promotion struct {
	ID          string
	Code        string
	GrantedPlan plan.Code
	MaxUses     int64
	UsedCount   int64
	Active      bool
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// Redemption records one account claiming one promotion. Created exactly
// once per (promotion, account) pair, never updated.
type Redemption struct {
	ID          string
	PromotionID string
	AccountID   string
	RedeemedAt  time.Time
}

// Validate checks whether a promotion can be redeemed at now.
// The same check must be re-run inside the redemption transaction; a
// passing pre-check only narrows the race window, it does not close it.
// This is a PURE function.
func Validate(p Promotion, now time.Time) FailReason {
	if !p.Active {
		return FailInactive
	}
	if p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
		return FailExpired
	}
	if p.UsedCount >= p.MaxUses {
		return FailLimitReached
	}
	return FailNone
}
