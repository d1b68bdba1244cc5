// Package registry tracks the live payment attempts of this process
// and enforces the one-live-attempt-per-merchant-reference invariant,
// across instances when backed by Redis.
package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sajilopay/payment-core/internal/domain"
	"github.com/sajilopay/payment-core/internal/strategy"
)

// Attempt is one live payment attempt: the execution state machine plus
// the metadata the HTTP layer needs to route signals to it.
type Attempt struct {
	ID          string
	MerchantRef string
	Provider    domain.Provider
	Method      domain.Method
	Context     *domain.PaymentContext
	Execution   *strategy.Execution
	StartedAt   time.Time
}

// LeaseStore guards merchant-reference uniqueness. The memory store
// covers a single instance; the Redis store extends the guarantee
// across instances.
type LeaseStore interface {
	// Acquire takes the lease for ref, returning false when another
	// live attempt already holds it.
	Acquire(ctx context.Context, ref string, ttl time.Duration) (bool, error)

	// Release frees the lease for ref.
	Release(ctx context.Context, ref string) error
}

// Registry holds the live attempts of this process.
type Registry struct {
	leases   LeaseStore
	leaseTTL time.Duration
	attempts syncMap
}

// New creates a registry over the given lease store. A zero leaseTTL
// means leases never expire on their own; attempts may legitimately
// wait indefinitely for a confirmation signal.
func New(leases LeaseStore, leaseTTL time.Duration) *Registry {
	return &Registry{leases: leases, leaseTTL: leaseTTL}
}

// Begin registers a new attempt for a merchant reference. It fails
// with ErrAttemptExists while another attempt for the same reference
// is live anywhere the lease store can see.
func (r *Registry) Begin(ctx context.Context, ref string, provider domain.Provider, method domain.Method, exec *strategy.Execution, pc *domain.PaymentContext) (*Attempt, error) {
	ok, err := r.leases.Acquire(ctx, ref, r.leaseTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrAttemptExists
	}

	att := &Attempt{
		ID:          uuid.New().String(),
		MerchantRef: ref,
		Provider:    provider,
		Method:      method,
		Context:     pc,
		Execution:   exec,
		StartedAt:   time.Now().UTC(),
	}

	if _, loaded := r.attempts.LoadOrStore(ref, att); loaded {
		// Lease won but a local entry is still present: release and bail.
		_ = r.leases.Release(ctx, ref)
		return nil, domain.ErrAttemptExists
	}
	return att, nil
}

// Lookup returns the live attempt for a merchant reference.
func (r *Registry) Lookup(ref string) (*Attempt, error) {
	att, ok := r.attempts.Load(ref)
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return att, nil
}

// End removes a resolved attempt and frees its lease.
func (r *Registry) End(ctx context.Context, ref string) {
	r.attempts.Delete(ref)
	_ = r.leases.Release(ctx, ref)
}

// Live returns the number of attempts currently tracked locally.
func (r *Registry) Live() int {
	return r.attempts.Len()
}
