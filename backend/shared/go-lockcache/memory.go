// go-lockcache/memory.go
package lockcache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

const memoryCleanupInterval = time.Minute

type memoryLease struct {
	token     string
	expiresAt time.Time
}

// MemoryLockCache is a single-process LockCache. It serialises callers the
// same way the Redis implementation does and is used by tests and local runs.
type MemoryLockCache struct {
	mu     sync.Mutex
	leases *cache.Cache
	values *cache.Cache
}

func NewMemoryLockCache() *MemoryLockCache {
	return &MemoryLockCache{
		leases: cache.New(cache.NoExpiration, memoryCleanupInterval),
		values: cache.New(cache.NoExpiration, memoryCleanupInterval),
	}
}

func (c *MemoryLockCache) AcquireLease(ctx context.Context, key string, ttl time.Duration) (verification.Lease, error) {
	if err := ctx.Err(); err != nil {
		return verification.Lease{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	l := memoryLease{token: uuid.NewString(), expiresAt: time.Now().Add(ttl)}
	if err := c.leases.Add(key, l, ttl); err != nil {
		return verification.Lease{}, verification.ErrLeaseHeld
	}
	return verification.Lease{Key: key, Token: l.token, ExpiresAt: l.expiresAt}, nil
}

func (c *MemoryLockCache) ReleaseLease(_ context.Context, lease verification.Lease) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.leases.Get(lease.Key)
	if !ok {
		return nil
	}
	if cur.(memoryLease).token == lease.Token {
		c.leases.Delete(lease.Key)
	}
	return nil
}

func (c *MemoryLockCache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok := c.values.Get(key)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (c *MemoryLockCache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	if err := c.values.Add(key, value, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Ping always succeeds.
func (c *MemoryLockCache) Ping(context.Context) error { return nil }

func (c *MemoryLockCache) Close() error { return nil }
