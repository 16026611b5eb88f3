package app

import (
	"context"
	"errors"

	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/domain/quota"
	"github.com/buildsage/buildsage/ports"
	"github.com/rs/zerolog"
)

// SignupService creates account records the first time a verified
// identity is seen and runs the one-shot first-contact bootstrap: the
// well-known launch promotion is auto-redeemed for brand-new accounts.
type SignupService struct {
	accounts      ports.AccountStore
	promotions    *PromotionService
	bootstrapCode string
	clock         ports.Clock
	logger        zerolog.Logger
}

// NewSignupService creates the signup service. bootstrapCode may be
// empty to disable auto-redemption.
func NewSignupService(
	accounts ports.AccountStore,
	promotions *PromotionService,
	bootstrapCode string,
	clock ports.Clock,
	logger zerolog.Logger,
) *SignupService {
	return &SignupService{
		accounts:      accounts,
		promotions:    promotions,
		bootstrapCode: bootstrapCode,
		clock:         clock,
		logger:        logger,
	}
}

// EnsureAccount returns the record for a verified identity, creating it
// with FREE plan and a fresh usage cycle if this is the first contact.
// Creation is idempotent: a lost creation race falls back to re-read.
// The returned bool reports whether this call created the record.
func (s *SignupService) EnsureAccount(ctx context.Context, accountID, email string) (ports.Account, bool, error) {
	if accountID == "" {
		// Email is an alternate lookup key, not a creation key; without
		// the resolver's stable id there is nothing to create.
		acct, err := s.accounts.GetByEmail(ctx, email)
		return acct, false, err
	}

	acct, err := s.accounts.Get(ctx, accountID)
	if err == nil {
		return acct, false, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return ports.Account{}, false, err
	}

	now := s.clock.Now()
	acct = ports.Account{
		ID:        accountID,
		Email:     email,
		Plan:      plan.CodeFree,
		Usage:     quota.Usage{ResetAt: now},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.accounts.Create(ctx, acct)
	if errors.Is(err, ports.ErrDuplicate) {
		// A concurrent first-time request created it; that request owns
		// the bootstrap redemption.
		acct, err = s.accounts.Get(ctx, accountID)
		return acct, false, err
	}
	if err != nil {
		return ports.Account{}, false, err
	}

	s.redeemBootstrap(ctx, accountID)

	// Re-read so a successful bootstrap redemption is reflected in the
	// returned plan.
	acct, err = s.accounts.Get(ctx, accountID)
	if err != nil {
		return ports.Account{}, false, err
	}
	return acct, true, nil
}

// redeemBootstrap grants the launch promotion to a brand-new account.
// Refusals (exhausted, inactive) and store failures are both non-fatal;
// the account simply stays on FREE.
func (s *SignupService) redeemBootstrap(ctx context.Context, accountID string) {
	if s.bootstrapCode == "" || s.promotions == nil {
		return
	}

	result, err := s.promotions.Redeem(ctx, s.bootstrapCode, accountID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("account_id", accountID).
			Msg("bootstrap promotion redemption errored, account stays on default plan")
		return
	}
	if result.Fail != "" {
		s.logger.Debug().
			Str("account_id", accountID).
			Str("reason", string(result.Fail)).
			Msg("bootstrap promotion not granted")
	}
}

// Ensure interface compliance.
var _ AccountProvisioner = (*SignupService)(nil)
