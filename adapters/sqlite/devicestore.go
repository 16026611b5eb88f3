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

// DeviceStore implements ports.DeviceStore using SQLite.
type DeviceStore struct {
	db *DB
}

// NewDeviceStore creates a new SQLite device store.
func NewDeviceStore(db *DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// Get retrieves a device by fingerprint.
func (s *DeviceStore) Get(ctx context.Context, fingerprint string) (ports.Device, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, perf_used, build_used, image_used, community_used,
			reset_at, created_at, updated_at
		FROM devices
		WHERE fingerprint = ?
	`, fingerprint)

	var d ports.Device
	err := row.Scan(
		&d.Fingerprint,
		&d.Usage.Performance, &d.Usage.Build, &d.Usage.Image, &d.Usage.Community,
		&d.Usage.ResetAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Device{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.Device{}, err
	}
	return d, nil
}

// Create stores a new device record.
func (s *DeviceStore) Create(ctx context.Context, d ports.Device) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (fingerprint, perf_used, build_used, image_used, community_used,
			reset_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.Fingerprint,
		d.Usage.Performance, d.Usage.Build, d.Usage.Image, d.Usage.Community,
		d.Usage.ResetAt.UTC(), d.CreatedAt, d.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ports.ErrDuplicate
	}
	return err
}

// IncrementUsage adds 1 to the counter for tool, atomically.
func (s *DeviceStore) IncrementUsage(ctx context.Context, fingerprint string, tool plan.ToolType) error {
	col, ok := usageColumn(tool)
	if !ok {
		return fmt.Errorf("unknown tool type %q", tool)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE devices
		SET `+col+` = `+col+` + 1, updated_at = ?
		WHERE fingerprint = ?
	`, time.Now().UTC(), fingerprint)
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
// matches the one the caller observed.
func (s *DeviceStore) ResetUsageIfStale(ctx context.Context, fingerprint string, observedResetAt, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE devices
		SET perf_used = 0, build_used = 0, image_used = 0, community_used = 0,
			reset_at = ?, updated_at = ?
		WHERE fingerprint = ? AND reset_at = ?
	`, now.UTC(), now.UTC(), fingerprint, observedResetAt.UTC())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Ensure interface compliance.
var _ ports.DeviceStore = (*DeviceStore)(nil)
