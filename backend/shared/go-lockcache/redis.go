// go-lockcache/redis.go
package lockcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

// RedisLockCache takes leases with Redlock across every configured node and
// keeps attendance markers on the first node.
type RedisLockCache struct {
	clients []redis.UniversalClient
	rs      *redsync.Redsync
}

func NewRedisLockCache(clients ...redis.UniversalClient) (*RedisLockCache, error) {
	if len(clients) == 0 {
		return nil, errors.New("lockcache: at least one redis client is required")
	}
	pools := make([]redsyncredis.Pool, 0, len(clients))
	for _, c := range clients {
		pools = append(pools, goredis.NewPool(c))
	}
	return &RedisLockCache{clients: clients, rs: redsync.New(pools...)}, nil
}

// DialRedis builds one client per host. hosts is a comma separated list as
// stored in the REDIS_HOSTS secret.
func DialRedis(hosts, password string) ([]redis.UniversalClient, error) {
	var clients []redis.UniversalClient
	for _, h := range strings.Split(hosts, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		clients = append(clients, redis.NewClient(&redis.Options{
			Addr:     h,
			Password: password,
		}))
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("lockcache: no redis hosts in %q", hosts)
	}
	return clients, nil
}

func (c *RedisLockCache) AcquireLease(ctx context.Context, key string, ttl time.Duration) (verification.Lease, error) {
	m := c.rs.NewMutex(key, redsync.WithExpiry(ttl), redsync.WithTries(1))
	if err := m.TryLockContext(ctx); err != nil {
		if isTaken(err) {
			return verification.Lease{}, verification.ErrLeaseHeld
		}
		return verification.Lease{}, fmt.Errorf("redlock %s: %w", key, err)
	}
	return verification.Lease{Key: key, Token: m.Value(), ExpiresAt: m.Until()}, nil
}

func (c *RedisLockCache) ReleaseLease(ctx context.Context, lease verification.Lease) error {
	m := c.rs.NewMutex(lease.Key, redsync.WithValue(lease.Token))
	if _, err := m.UnlockContext(ctx); err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) || isTaken(err) {
			return nil
		}
		return fmt.Errorf("redlock release %s: %w", lease.Key, err)
	}
	return nil
}

func (c *RedisLockCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.clients[0].Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisLockCache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return c.clients[0].SetNX(ctx, key, value, ttl).Result()
}

func (c *RedisLockCache) Ping(ctx context.Context) error {
	for i, cl := range c.clients {
		if err := cl.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis node %d: %w", i, err)
		}
	}
	return nil
}

func (c *RedisLockCache) Close() error {
	var errs []error
	for _, cl := range c.clients {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isTaken(err error) bool {
	var taken *redsync.ErrTaken
	return errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken)
}
