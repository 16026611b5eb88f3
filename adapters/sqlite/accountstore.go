package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/ports"
)

// AccountStore implements ports.AccountStore using SQLite.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates a new SQLite account store.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, email, plan, plan_renews_at, billing_ref,
	perf_used, build_used, image_used, community_used,
	reset_at, created_at, updated_at`

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id string) (ports.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ?
	`, id)
	return scanAccount(row)
}

// GetByEmail retrieves an account by email. An empty email is not an
// identity and never matches.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (ports.Account, error) {
	if email == "" {
		return ports.Account{}, ports.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = ?
	`, email)
	return scanAccount(row)
}

// GetByBillingRef retrieves an account by processor customer reference.
func (s *AccountStore) GetByBillingRef(ctx context.Context, ref string) (ports.Account, error) {
	if ref == "" {
		return ports.Account{}, ports.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE billing_ref = ?
	`, ref)
	return scanAccount(row)
}

// Create stores a new account.
func (s *AccountStore) Create(ctx context.Context, a ports.Account) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, nullString(a.Email), string(a.Plan), nullTime(a.PlanRenewsAt), nullString(a.BillingRef),
		a.Usage.Performance, a.Usage.Build, a.Usage.Image, a.Usage.Community,
		a.Usage.ResetAt.UTC(), a.CreatedAt, a.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ports.ErrDuplicate
	}
	return err
}

// IncrementUsage adds 1 to the counter for tool. The arithmetic happens
// in the storage engine, so concurrent increments never lose updates.
func (s *AccountStore) IncrementUsage(ctx context.Context, id string, tool plan.ToolType) error {
	col, ok := usageColumn(tool)
	if !ok {
		return fmt.Errorf("unknown tool type %q", tool)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET `+col+` = `+col+` + 1, updated_at = ?
		WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// ResetUsageIfStale zeroes counters when the stored reset date still
// matches the one the caller observed. The WHERE clause makes the
// read-compare-reset a single atomic statement, so concurrent
// evaluators reset at most once.
func (s *AccountStore) ResetUsageIfStale(ctx context.Context, id string, observedResetAt, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET perf_used = 0, build_used = 0, image_used = 0, community_used = 0,
			reset_at = ?, updated_at = ?
		WHERE id = ? AND reset_at = ?
	`, now.UTC(), now.UTC(), id, observedResetAt.UTC())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// SetPlan updates plan code and renewal date without touching counters.
func (s *AccountStore) SetPlan(ctx context.Context, id string, code plan.Code, renewsAt *time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET plan = ?, plan_renews_at = ?, updated_at = ?
		WHERE id = ?
	`, string(code), nullTime(renewsAt), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// ApplyCheckout records a completed checkout and starts a fresh usage
// cycle in one statement.
func (s *AccountStore) ApplyCheckout(ctx context.Context, id string, code plan.Code, billingRef string, renewsAt time.Time, now time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET plan = ?, billing_ref = ?, plan_renews_at = ?,
			perf_used = 0, build_used = 0, image_used = 0, community_used = 0,
			reset_at = ?, updated_at = ?
		WHERE id = ?
	`, string(code), nullString(billingRef), renewsAt.UTC(), now.UTC(), now.UTC(), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (ports.Account, error) {
	var a ports.Account
	var planCode string
	var email sql.NullString
	var renewsAt sql.NullTime
	var billingRef sql.NullString

	err := row.Scan(
		&a.ID, &email, &planCode, &renewsAt, &billingRef,
		&a.Usage.Performance, &a.Usage.Build, &a.Usage.Image, &a.Usage.Community,
		&a.Usage.ResetAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Account{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.Account{}, err
	}

	a.Email = email.String
	a.Plan = plan.Code(planCode)
	if renewsAt.Valid {
		t := renewsAt.Time
		a.PlanRenewsAt = &t
	}
	if billingRef.Valid {
		a.BillingRef = billingRef.String
	}
	return a, nil
}

// Ensure interface compliance.
var _ ports.AccountStore = (*AccountStore)(nil)
