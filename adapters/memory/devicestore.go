package memory

import (
	"context"
	"sync"
	"time"

	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/ports"
)

// DeviceStore is an in-memory implementation of ports.DeviceStore.
type DeviceStore struct {
	mu      sync.RWMutex
	devices map[string]ports.Device // keyed by fingerprint
}

// NewDeviceStore creates an empty in-memory device store.
func NewDeviceStore() *DeviceStore {
	return &DeviceStore{devices: make(map[string]ports.Device)}
}

// Get retrieves a device by fingerprint.
func (s *DeviceStore) Get(ctx context.Context, fingerprint string) (ports.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[fingerprint]
	if !ok {
		return ports.Device{}, ports.ErrNotFound
	}
	return d, nil
}

// Create stores a new device record.
func (s *DeviceStore) Create(ctx context.Context, d ports.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[d.Fingerprint]; ok {
		return ports.ErrDuplicate
	}
	s.devices[d.Fingerprint] = d
	return nil
}

// IncrementUsage adds 1 to the counter for tool.
func (s *DeviceStore) IncrementUsage(ctx context.Context, fingerprint string, tool plan.ToolType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[fingerprint]
	if !ok {
		return ports.ErrNotFound
	}
	bumpUsage(&d.Usage, tool)
	d.UpdatedAt = time.Now().UTC()
	s.devices[fingerprint] = d
	return nil
}

// ResetUsageIfStale zeroes counters if the stored reset date still
// matches observedResetAt.
func (s *DeviceStore) ResetUsageIfStale(ctx context.Context, fingerprint string, observedResetAt, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[fingerprint]
	if !ok {
		return false, ports.ErrNotFound
	}
	if !d.Usage.ResetAt.Equal(observedResetAt) {
		return false, nil
	}
	d.Usage = zeroedUsage(now)
	d.UpdatedAt = now
	s.devices[fingerprint] = d
	return true, nil
}

// Ensure interface compliance.
var _ ports.DeviceStore = (*DeviceStore)(nil)
