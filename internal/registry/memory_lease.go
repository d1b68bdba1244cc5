package registry

import (
	"context"
	"sync"
	"time"
)

// MemoryLeaseStore enforces merchant-reference uniqueness within a
// single process. Suitable for tests and single-instance deployments.
type MemoryLeaseStore struct {
	mu     sync.Mutex
	leases map[string]time.Time
}

// NewMemoryLeaseStore creates an empty in-process lease store.
func NewMemoryLeaseStore() *MemoryLeaseStore {
	return &MemoryLeaseStore{leases: make(map[string]time.Time)}
}

func (s *MemoryLeaseStore) Acquire(_ context.Context, ref string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.leases[ref]; ok {
		if expiry.IsZero() || time.Now().Before(expiry) {
			return false, nil
		}
		// Expired lease, fall through and take it over.
	}

	var expiry time.Time
	if ttl > 0 {
		expiry = time.Now().Add(ttl)
	}
	s.leases[ref] = expiry
	return true, nil
}

func (s *MemoryLeaseStore) Release(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, ref)
	return nil
}
