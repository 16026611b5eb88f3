package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/domain/promo"
	"github.com/buildsage/buildsage/ports"
)

// PromotionStore implements ports.PromotionStore using SQLite.
type PromotionStore struct {
	db *DB
}

// NewPromotionStore creates a new SQLite promotion store.
func NewPromotionStore(db *DB) *PromotionStore {
	return &PromotionStore{db: db}
}

const promoColumns = `id, code, granted_plan, max_uses, used_count, active, expires_at, created_at`

// GetByCode retrieves a promotion by its code.
func (s *PromotionStore) GetByCode(ctx context.Context, code string) (promo.Promotion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+promoColumns+`
		FROM promotions
		WHERE code = ?
	`, code)
	return scanPromotion(row)
}

// Create stores a new promotion.
func (s *PromotionStore) Create(ctx context.Context, p promo.Promotion) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promotions (`+promoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Code, string(p.GrantedPlan), p.MaxUses, p.UsedCount,
		boolToInt(p.Active), nullTime(p.ExpiresAt), p.CreatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ports.ErrDuplicate
	}
	return err
}

// List returns all promotions, newest first.
func (s *PromotionStore) List(ctx context.Context) ([]promo.Promotion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+promoColumns+`
		FROM promotions
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []promo.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Redeem runs the four-step redemption as one transaction:
// re-validate, insert the redemption row, bump used_count, upgrade the
// account. The unique index on (promotion_id, account_id) arbitrates
// concurrent attempts; the loser's transaction rolls back whole.
func (s *PromotionStore) Redeem(ctx context.Context, code, accountID, redemptionID string, renewsAt, now time.Time) (ports.RedeemResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.RedeemResult{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+promoColumns+`
		FROM promotions
		WHERE code = ?
	`, code)
	p, err := scanPromotion(row)
	if errors.Is(err, ports.ErrNotFound) {
		return ports.RedeemResult{Fail: promo.FailNotFound}, nil
	}
	if err != nil {
		return ports.RedeemResult{}, err
	}

	// Re-check inside the transaction even if the caller pre-checked.
	if reason := promo.Validate(p, now); reason != promo.FailNone {
		return ports.RedeemResult{Fail: reason}, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO redemptions (id, promotion_id, account_id, redeemed_at)
		VALUES (?, ?, ?, ?)
	`, redemptionID, p.ID, accountID, now.UTC())
	if err != nil {
		if isUniqueConstraintError(err) {
			return ports.RedeemResult{Fail: promo.FailAlreadyRedeemed}, nil
		}
		if isForeignKeyError(err) {
			// The account row the redemption references does not exist.
			return ports.RedeemResult{}, ports.ErrNotFound
		}
		return ports.RedeemResult{}, err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE promotions
		SET used_count = used_count + 1
		WHERE id = ? AND used_count < max_uses
	`, p.ID)
	if err != nil {
		return ports.RedeemResult{}, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return ports.RedeemResult{}, err
	}
	if rows == 0 {
		// A concurrent redemption consumed the last use between our read
		// and this update; abort without touching anything.
		return ports.RedeemResult{Fail: promo.FailLimitReached}, nil
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET plan = ?, plan_renews_at = ?, updated_at = ?
		WHERE id = ?
	`, string(p.GrantedPlan), renewsAt.UTC(), now.UTC(), accountID)
	if err != nil {
		return ports.RedeemResult{}, err
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return ports.RedeemResult{}, err
	}
	if rows == 0 {
		return ports.RedeemResult{}, ports.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return ports.RedeemResult{}, err
	}
	return ports.RedeemResult{Granted: p.GrantedPlan}, nil
}

func scanPromotion(row rowScanner) (promo.Promotion, error) {
	var p promo.Promotion
	var grantedPlan string
	var active int
	var expiresAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.Code, &grantedPlan, &p.MaxUses, &p.UsedCount,
		&active, &expiresAt, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return promo.Promotion{}, ports.ErrNotFound
	}
	if err != nil {
		return promo.Promotion{}, err
	}

	p.GrantedPlan = plan.Code(grantedPlan)
	p.Active = active != 0
	if expiresAt.Valid {
		t := expiresAt.Time
		p.ExpiresAt = &t
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure interface compliance.
var _ ports.PromotionStore = (*PromotionStore)(nil)
