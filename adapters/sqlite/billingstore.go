package sqlite

import (
	"context"
	"time"

	"github.com/buildsage/buildsage/domain/billing"
	"github.com/buildsage/buildsage/ports"
)

// BillingEventStore implements ports.BillingEventStore using SQLite.
// The primary key on the event id makes replay detection a plain
// insert: the second delivery of an event id fails the constraint.
type BillingEventStore struct {
	db *DB
}

// NewBillingEventStore creates a new SQLite billing event ledger.
func NewBillingEventStore(db *DB) *BillingEventStore {
	return &BillingEventStore{db: db}
}

// MarkProcessed claims an event id.
func (s *BillingEventStore) MarkProcessed(ctx context.Context, eventID string, eventType billing.EventType, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO billing_events (id, event_type, processed_at)
		VALUES (?, ?, ?)
	`, eventID, string(eventType), at.UTC())

	if err != nil && isUniqueConstraintError(err) {
		return ports.ErrDuplicate
	}
	return err
}

// Ensure interface compliance.
var _ ports.BillingEventStore = (*BillingEventStore)(nil)
