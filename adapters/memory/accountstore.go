// Package memory provides in-memory implementations of storage ports.
// Used for tests; production uses the sqlite adapters.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/ports"
)

// AccountStore is an in-memory implementation of ports.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]ports.Account // keyed by ID
}

// NewAccountStore creates an empty in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]ports.Account)}
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id string) (ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return ports.Account{}, ports.ErrNotFound
	}
	return a, nil
}

// GetByEmail retrieves an account by email. An empty email is not an
// identity and never matches.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if email == "" {
		return ports.Account{}, ports.ErrNotFound
	}
	for _, a := range s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return ports.Account{}, ports.ErrNotFound
}

// GetByBillingRef retrieves an account by processor customer reference.
func (s *AccountStore) GetByBillingRef(ctx context.Context, ref string) (ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ref == "" {
		return ports.Account{}, ports.ErrNotFound
	}
	for _, a := range s.accounts {
		if a.BillingRef == ref {
			return a, nil
		}
	}
	return ports.Account{}, ports.ErrNotFound
}

// Create stores a new account.
func (s *AccountStore) Create(ctx context.Context, a ports.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return ports.ErrDuplicate
	}
	// Email uniqueness only applies to non-empty emails; resolvers may
	// provision id-only accounts.
	for _, existing := range s.accounts {
		if a.Email != "" && existing.Email == a.Email {
			return ports.ErrDuplicate
		}
	}
	s.accounts[a.ID] = a
	return nil
}

// IncrementUsage adds 1 to the counter for tool.
func (s *AccountStore) IncrementUsage(ctx context.Context, id string, tool plan.ToolType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ports.ErrNotFound
	}
	bumpUsage(&a.Usage, tool)
	a.UpdatedAt = time.Now().UTC()
	s.accounts[id] = a
	return nil
}

// ResetUsageIfStale zeroes counters if the stored reset date still
// matches observedResetAt.
func (s *AccountStore) ResetUsageIfStale(ctx context.Context, id string, observedResetAt, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return false, ports.ErrNotFound
	}
	if !a.Usage.ResetAt.Equal(observedResetAt) {
		return false, nil
	}
	a.Usage = zeroedUsage(now)
	a.UpdatedAt = now
	s.accounts[id] = a
	return true, nil
}

// SetPlan updates plan code and renewal date without touching counters.
func (s *AccountStore) SetPlan(ctx context.Context, id string, code plan.Code, renewsAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ports.ErrNotFound
	}
	a.Plan = code
	a.PlanRenewsAt = renewsAt
	a.UpdatedAt = time.Now().UTC()
	s.accounts[id] = a
	return nil
}

// ApplyCheckout records a completed checkout with a fresh usage cycle.
func (s *AccountStore) ApplyCheckout(ctx context.Context, id string, code plan.Code, billingRef string, renewsAt time.Time, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ports.ErrNotFound
	}
	a.Plan = code
	a.BillingRef = billingRef
	a.PlanRenewsAt = &renewsAt
	a.Usage = zeroedUsage(now)
	a.UpdatedAt = now
	s.accounts[id] = a
	return nil
}

// setPlanForRedemption is used by the promotion store during redemption;
// the caller must not hold this store's lock.
func (s *AccountStore) setPlanForRedemption(id string, code plan.Code, renewsAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ports.ErrNotFound
	}
	a.Plan = code
	a.PlanRenewsAt = &renewsAt
	a.UpdatedAt = time.Now().UTC()
	s.accounts[id] = a
	return nil
}

// Ensure interface compliance.
var _ ports.AccountStore = (*AccountStore)(nil)
