package memory

import (
	"context"
	"sync"
	"time"

	"github.com/buildsage/buildsage/domain/billing"
	"github.com/buildsage/buildsage/ports"
)

// BillingEventStore is an in-memory processed-event ledger.
type BillingEventStore struct {
	mu        sync.Mutex
	processed map[string]time.Time
}

// NewBillingEventStore creates an empty in-memory event ledger.
func NewBillingEventStore() *BillingEventStore {
	return &BillingEventStore{processed: make(map[string]time.Time)}
}

// MarkProcessed claims an event id.
func (s *BillingEventStore) MarkProcessed(ctx context.Context, eventID string, eventType billing.EventType, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[eventID]; ok {
		return ports.ErrDuplicate
	}
	s.processed[eventID] = at
	return nil
}

// Ensure interface compliance.
var _ ports.BillingEventStore = (*BillingEventStore)(nil)
