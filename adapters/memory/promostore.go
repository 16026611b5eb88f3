package memory

import (
	"context"
	"sync"
	"time"

	"github.com/buildsage/buildsage/domain/promo"
	"github.com/buildsage/buildsage/ports"
)

// PromotionStore is an in-memory implementation of ports.PromotionStore.
// Redeem mutates the account store the same way the sqlite adapter's
// transaction does.
type PromotionStore struct {
	mu          sync.Mutex
	promotions  map[string]promo.Promotion // keyed by code
	redemptions map[string]promo.Redemption // keyed by promotionID + "\x00" + accountID
	accounts    *AccountStore
}

// NewPromotionStore creates an empty in-memory promotion store backed by
// the given account store.
func NewPromotionStore(accounts *AccountStore) *PromotionStore {
	return &PromotionStore{
		promotions:  make(map[string]promo.Promotion),
		redemptions: make(map[string]promo.Redemption),
		accounts:    accounts,
	}
}

// GetByCode retrieves a promotion by its code.
func (s *PromotionStore) GetByCode(ctx context.Context, code string) (promo.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.promotions[code]
	if !ok {
		return promo.Promotion{}, ports.ErrNotFound
	}
	return p, nil
}

// Create stores a new promotion.
func (s *PromotionStore) Create(ctx context.Context, p promo.Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.promotions[p.Code]; ok {
		return ports.ErrDuplicate
	}
	s.promotions[p.Code] = p
	return nil
}

// List returns all promotions.
func (s *PromotionStore) List(ctx context.Context) ([]promo.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]promo.Promotion, 0, len(s.promotions))
	for _, p := range s.promotions {
		out = append(out, p)
	}
	return out, nil
}

// Redeem atomically validates, records the redemption, increments the
// use count, and upgrades the account plan. The store mutex stands in
// for the sqlite adapter's transaction.
func (s *PromotionStore) Redeem(ctx context.Context, code, accountID, redemptionID string, renewsAt, now time.Time) (ports.RedeemResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.promotions[code]
	if !ok {
		return ports.RedeemResult{Fail: promo.FailNotFound}, nil
	}
	if reason := promo.Validate(p, now); reason != promo.FailNone {
		return ports.RedeemResult{Fail: reason}, nil
	}

	key := p.ID + "\x00" + accountID
	if _, ok := s.redemptions[key]; ok {
		return ports.RedeemResult{Fail: promo.FailAlreadyRedeemed}, nil
	}

	// Upgrade the account first so a missing account aborts before any
	// promotion state changes, mirroring the transactional rollback.
	if err := s.accounts.setPlanForRedemption(accountID, p.GrantedPlan, renewsAt); err != nil {
		return ports.RedeemResult{}, err
	}

	s.redemptions[key] = promo.Redemption{
		ID:          redemptionID,
		PromotionID: p.ID,
		AccountID:   accountID,
		RedeemedAt:  now,
	}
	p.UsedCount++
	s.promotions[code] = p

	return ports.RedeemResult{Granted: p.GrantedPlan}, nil
}

// RedemptionCount reports how many redemptions exist for a promotion id
// (test helper).
func (s *PromotionStore) RedemptionCount(promotionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.redemptions {
		if r.PromotionID == promotionID {
			n++
		}
	}
	return n
}

// Ensure interface compliance.
var _ ports.PromotionStore = (*PromotionStore)(nil)
