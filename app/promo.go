package app

import (
	"context"
	"errors"
	"time"

	"github.com/buildsage/buildsage/adapters/metrics"
	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/domain/promo"
	"github.com/buildsage/buildsage/ports"
	"github.com/rs/zerolog"
)

// promotionalRenewalHorizon is how far in the future a promotional
// grant's renewal date is set. Promotional upgrades are not backed by a
// real subscription, so the date is a far-future sentinel.
const promotionalRenewalHorizon = 100 // years

// BootstrapPromotion describes the well-known launch promotion created
// at startup.
type BootstrapPromotion struct {
	Code    string
	Grants  plan.Code
	MaxUses int64
}

// PromotionService redeems promotion codes and maintains the bootstrap
// promotion.
type PromotionService struct {
	promos  ports.PromotionStore
	idGen   ports.IDGenerator
	clock   ports.Clock
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewPromotionService creates the promotion service.
func NewPromotionService(
	promos ports.PromotionStore,
	idGen ports.IDGenerator,
	clock ports.Clock,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *PromotionService {
	return &PromotionService{
		promos:  promos,
		idGen:   idGen,
		clock:   clock,
		metrics: collector,
		logger:  logger,
	}
}

// Redeem attempts a one-time redemption of code for accountID. Expected
// refusals (exhausted, expired, already redeemed) come back in the
// result; a non-nil error means the store failed.
func (s *PromotionService) Redeem(ctx context.Context, code, accountID string) (ports.RedeemResult, error) {
	now := s.clock.Now()
	renewsAt := now.AddDate(promotionalRenewalHorizon, 0, 0)

	result, err := s.promos.Redeem(ctx, code, accountID, s.idGen.New(), renewsAt, now)
	if err != nil {
		s.observe("error")
		s.logger.Error().Err(err).
			Str("code", code).
			Str("account_id", accountID).
			Msg("promotion redemption failed at the store")
		return ports.RedeemResult{}, err
	}

	if result.Fail != promo.FailNone {
		s.observe(string(result.Fail))
		s.logger.Info().
			Str("code", code).
			Str("account_id", accountID).
			Str("reason", string(result.Fail)).
			Msg("promotion redemption refused")
		return result, nil
	}

	s.observe("redeemed")
	s.logger.Info().
		Str("code", code).
		Str("account_id", accountID).
		Str("granted_plan", string(result.Granted)).
		Msg("promotion redeemed")
	return result, nil
}

// EnsureBootstrap creates the launch promotion if it does not exist.
// Safe to invoke on every startup.
func (s *PromotionService) EnsureBootstrap(ctx context.Context, b BootstrapPromotion) error {
	if b.Code == "" {
		return nil
	}

	err := s.promos.Create(ctx, promo.Promotion{
		ID:          s.idGen.New(),
		Code:        b.Code,
		GrantedPlan: b.Grants,
		MaxUses:     b.MaxUses,
		Active:      true,
		CreatedAt:   s.clock.Now(),
	})
	if errors.Is(err, ports.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("code", b.Code).
		Str("granted_plan", string(b.Grants)).
		Int64("max_uses", b.MaxUses).
		Msg("bootstrap promotion created")
	return nil
}

// List returns all promotions (admin surface).
func (s *PromotionService) List(ctx context.Context) ([]promo.Promotion, error) {
	return s.promos.List(ctx)
}

// CreatePromotion registers a new campaign code (admin surface).
func (s *PromotionService) CreatePromotion(ctx context.Context, code string, grants plan.Code, maxUses int64, expiresAt *time.Time) (promo.Promotion, error) {
	p := promo.Promotion{
		ID:          s.idGen.New(),
		Code:        code,
		GrantedPlan: grants,
		MaxUses:     maxUses,
		Active:      true,
		ExpiresAt:   expiresAt,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.promos.Create(ctx, p); err != nil {
		return promo.Promotion{}, err
	}
	return p, nil
}

func (s *PromotionService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.Redemptions.WithLabelValues(outcome).Inc()
	}
}
