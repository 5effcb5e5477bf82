// go-verification/attendance.go
package verification

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	DefaultLeaseTTL       = 5 * time.Second
	DefaultAcquireTimeout = 3 * time.Second
	DefaultRetryDelay     = 50 * time.Millisecond
)

// Lease is a TTL-bounded exclusive right over one attendance key. The token
// proves ownership when releasing.
type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

func (l Lease) IsZero() bool { return l.Key == "" && l.Token == "" }

// LockCache is the distributed lock/cache service shared by every verifier
// instance.
type LockCache interface {
	// AcquireLease makes a single attempt and returns ErrLeaseHeld when
	// another holder has the key.
	AcquireLease(ctx context.Context, key string, ttl time.Duration) (Lease, error)
	// ReleaseLease is a no-op for an expired or already released lease.
	ReleaseLease(ctx context.Context, lease Lease) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// SetIfAbsent writes value only when key is missing. A ttl <= 0 keeps the
	// entry for the life of the cache.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// AttendanceKey identifies one redemption slot.
type AttendanceKey struct {
	EventID         string
	TicketReference string
}

// Length-prefixing the event id keeps ("a:b","c") and ("a","b:c") apart.
func (k AttendanceKey) encode() string {
	return fmt.Sprintf("%d:%s:%s", len(k.EventID), k.EventID, k.TicketReference)
}

func (k AttendanceKey) LockKey() string   { return "ticket-verification:lock:" + k.encode() }
func (k AttendanceKey) MarkerKey() string { return "ticket-verification:attended:" + k.encode() }

type GuardOptions struct {
	LeaseTTL       time.Duration
	AcquireTimeout time.Duration
	RetryDelay     time.Duration
	// MarkerTTL <= 0 keeps markers for the life of the cache.
	MarkerTTL time.Duration
	Now       func() time.Time
}

func DefaultGuardOptions() GuardOptions {
	return GuardOptions{
		LeaseTTL:       DefaultLeaseTTL,
		AcquireTimeout: DefaultAcquireTimeout,
		RetryDelay:     DefaultRetryDelay,
		Now:            time.Now,
	}
}

// AttendanceGuard enforces at-most-once redemption per AttendanceKey with a
// lease plus an idempotency marker.
type AttendanceGuard struct {
	cache LockCache
	opts  GuardOptions
}

func NewAttendanceGuard(cache LockCache, opts GuardOptions) *AttendanceGuard {
	def := DefaultGuardOptions()
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = def.LeaseTTL
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = def.AcquireTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &AttendanceGuard{cache: cache, opts: opts}
}

// Acquire retries until the lease is granted or AcquireTimeout elapses.
func (g *AttendanceGuard) Acquire(ctx context.Context, key AttendanceKey) (Lease, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.AcquireTimeout)
	defer cancel()

	lockKey := key.LockKey()
	for {
		lease, err := g.cache.AcquireLease(ctx, lockKey, g.opts.LeaseTTL)
		if err == nil {
			return lease, nil
		}
		if ctx.Err() != nil {
			return Lease{}, fmt.Errorf("%w: %s: %w", ErrLockTimeout, lockKey, ctx.Err())
		}
		if !errors.Is(err, ErrLeaseHeld) {
			return Lease{}, fmt.Errorf("acquire lease %s: %w", lockKey, err)
		}

		// Jitter spreads gate devices that collided on the same ticket.
		delay := g.opts.RetryDelay + rand.N(g.opts.RetryDelay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Lease{}, fmt.Errorf("%w: %s: %w", ErrLockTimeout, lockKey, ctx.Err())
		case <-timer.C:
		}
	}
}

func (g *AttendanceGuard) IsAlreadyAttended(ctx context.Context, key AttendanceKey) (bool, error) {
	_, found, err := g.cache.Get(ctx, key.MarkerKey())
	if err != nil {
		return false, fmt.Errorf("read attendance marker: %w", err)
	}
	return found, nil
}

// MarkAttended writes the idempotency marker. It must be called while the
// lease for key is held.
func (g *AttendanceGuard) MarkAttended(ctx context.Context, key AttendanceKey) error {
	value := g.opts.Now().UTC().Format(time.RFC3339Nano)
	created, err := g.cache.SetIfAbsent(ctx, key.MarkerKey(), value, g.opts.MarkerTTL)
	if err != nil {
		return fmt.Errorf("write attendance marker: %w", err)
	}
	if !created {
		return ErrAlreadyAttended
	}
	return nil
}

// Release is safe to call more than once and with a zero lease.
func (g *AttendanceGuard) Release(ctx context.Context, lease Lease) error {
	if lease.IsZero() {
		return nil
	}
	if err := g.cache.ReleaseLease(ctx, lease); err != nil {
		return fmt.Errorf("release lease %s: %w", lease.Key, err)
	}
	return nil
}
