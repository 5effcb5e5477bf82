package verification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketland/mono-repo/backend/shared/go-lockcache"
	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

func fastGuard(c verification.LockCache) *verification.AttendanceGuard {
	return verification.NewAttendanceGuard(c, verification.GuardOptions{
		LeaseTTL:       time.Second,
		AcquireTimeout: 100 * time.Millisecond,
		RetryDelay:     5 * time.Millisecond,
	})
}

func TestAttendanceKey_Encoding(t *testing.T) {
	a := verification.AttendanceKey{EventID: "a:b", TicketReference: "c"}
	b := verification.AttendanceKey{EventID: "a", TicketReference: "b:c"}
	assert.NotEqual(t, a.LockKey(), b.LockKey())
	assert.NotEqual(t, a.MarkerKey(), b.MarkerKey())
	assert.NotEqual(t, a.LockKey(), a.MarkerKey())
	assert.Equal(t, "ticket-verification:lock:5:evt-1:tix-42",
		verification.AttendanceKey{EventID: "evt-1", TicketReference: "tix-42"}.LockKey())
}

func TestAttendanceGuard_AcquireTimesOut(t *testing.T) {
	ctx := context.Background()
	g := fastGuard(lockcache.NewMemoryLockCache())
	key := verification.AttendanceKey{EventID: "evt-1", TicketReference: "tix-42"}

	lease, err := g.Acquire(ctx, key)
	require.NoError(t, err)

	start := time.Now()
	_, err = g.Acquire(ctx, key)
	assert.ErrorIs(t, err, verification.ErrLockTimeout)
	assert.True(t, verification.IsRetryable(err))
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, g.Release(ctx, lease))
	_, err = g.Acquire(ctx, key)
	assert.NoError(t, err)
}

func TestAttendanceGuard_AcquireWaitsForRelease(t *testing.T) {
	ctx := context.Background()
	g := verification.NewAttendanceGuard(lockcache.NewMemoryLockCache(), verification.GuardOptions{
		AcquireTimeout: time.Second,
		RetryDelay:     5 * time.Millisecond,
	})
	key := verification.AttendanceKey{EventID: "evt-1", TicketReference: "tix-42"}

	lease, err := g.Acquire(ctx, key)
	require.NoError(t, err)
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = g.Release(ctx, lease)
	}()

	_, err = g.Acquire(ctx, key)
	assert.NoError(t, err)
}

func TestAttendanceGuard_AcquireCancelled(t *testing.T) {
	g := fastGuard(lockcache.NewMemoryLockCache())
	key := verification.AttendanceKey{EventID: "evt-1", TicketReference: "tix-42"}
	_, err := g.Acquire(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Acquire(ctx, key)
	assert.ErrorIs(t, err, verification.ErrLockTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

type brokenLockCache struct{ verification.LockCache }

var errBroken = errors.New("connection refused")

func (brokenLockCache) AcquireLease(context.Context, string, time.Duration) (verification.Lease, error) {
	return verification.Lease{}, errBroken
}

func TestAttendanceGuard_AcquireBackendError(t *testing.T) {
	g := fastGuard(brokenLockCache{})
	_, err := g.Acquire(context.Background(), verification.AttendanceKey{EventID: "e", TicketReference: "t"})
	assert.ErrorIs(t, err, errBroken)
	assert.NotErrorIs(t, err, verification.ErrLockTimeout)
}

func TestAttendanceGuard_Marker(t *testing.T) {
	ctx := context.Background()
	g := fastGuard(lockcache.NewMemoryLockCache())
	key := verification.AttendanceKey{EventID: "evt-1", TicketReference: "tix-42"}

	attended, err := g.IsAlreadyAttended(ctx, key)
	require.NoError(t, err)
	assert.False(t, attended)

	require.NoError(t, g.MarkAttended(ctx, key))
	assert.ErrorIs(t, g.MarkAttended(ctx, key), verification.ErrAlreadyAttended)

	attended, err = g.IsAlreadyAttended(ctx, key)
	require.NoError(t, err)
	assert.True(t, attended)

	other, err := g.IsAlreadyAttended(ctx, verification.AttendanceKey{EventID: "evt-2", TicketReference: "tix-42"})
	require.NoError(t, err)
	assert.False(t, other)
}

func TestAttendanceGuard_ReleaseZeroLease(t *testing.T) {
	g := fastGuard(brokenLockCache{})
	assert.NoError(t, g.Release(context.Background(), verification.Lease{}))
}
