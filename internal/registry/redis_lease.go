package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/sajilopay/payment-core/pkg/redis"
)

const leaseKeyPrefix = "payment:lease:"

// RedisLeaseStore enforces merchant-reference uniqueness across
// instances with SETNX. Each lease carries the acquiring instance id
// for debugging stuck references.
type RedisLeaseStore struct {
	client     *redis.Client
	instanceID string
}

// NewRedisLeaseStore creates a lease store over the shared Redis client.
func NewRedisLeaseStore(client *redis.Client, instanceID string) *RedisLeaseStore {
	return &RedisLeaseStore{client: client, instanceID: instanceID}
}

func (s *RedisLeaseStore) Acquire(ctx context.Context, ref string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, leaseKeyPrefix+ref, s.instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease for %s: %w", ref, err)
	}
	return ok, nil
}

func (s *RedisLeaseStore) Release(ctx context.Context, ref string) error {
	if err := s.client.Del(ctx, leaseKeyPrefix+ref).Err(); err != nil {
		return fmt.Errorf("release lease for %s: %w", ref, err)
	}
	return nil
}
