package verification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketland/mono-repo/backend/shared/go-lockcache"
	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

type harness struct {
	ledger *fakeLedger
	store  *fakeStore
	cache  *flakyCache
	server keypair
	holder keypair
	v      *verification.Verifier
}

func newHarness(t *testing.T, opts verification.GuardOptions) *harness {
	t.Helper()
	h := &harness{
		ledger: newFakeLedger(),
		store:  newFakeStore(),
		cache:  &flakyCache{LockCache: lockcache.NewMemoryLockCache()},
		server: newKeypair(t),
		holder: newKeypair(t),
	}
	h.ledger.setOwner("tix-42", h.holder.pub)
	h.store.add("tix-42", 2)

	v, err := verification.NewVerifier(h.ledger, h.store, verification.NewAttendanceGuard(h.cache, opts), h.server.priv)
	require.NoError(t, err)
	h.v = v
	return h
}

func defaultHarness(t *testing.T) *harness {
	return newHarness(t, verification.GuardOptions{
		AcquireTimeout: 2 * time.Second,
		RetryDelay:     2 * time.Millisecond,
	})
}

func TestVerifyTicket_Scenario(t *testing.T) {
	ctx := context.Background()
	h := defaultHarness(t)
	ch := signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42")

	resp, err := h.v.VerifyTicket(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), resp.TicketTypeIndex)
	assert.Equal(t, "evt-1", resp.EventID)
	assert.Equal(t, "tix-42", resp.TicketReference)
	assert.Equal(t, ch.ClaimedOwnerPubkey, resp.TicketOwnerPubkey)
	require.NoError(t, verification.ValidateVerificationResult(resp, h.v.PublicKey()))
	assert.True(t, h.store.attended("tix-42"))

	_, err = h.v.VerifyTicket(ctx, ch)
	assert.ErrorIs(t, err, verification.ErrAlreadyAttended)
	assert.NotErrorIs(t, err, verification.ErrTicketVerification)

	attacker := newKeypair(t)
	_, err = h.v.VerifyTicket(ctx, signedChallenge(t, attacker, "evt-1", "nonce", "tix-42"))
	assert.ErrorIs(t, err, verification.ErrTicketVerification)
	assert.ErrorIs(t, err, verification.ErrOwnershipMismatch)
	assert.NotErrorIs(t, err, verification.ErrAlreadyAttended)
}

func TestVerifyTicket_MismatchBeforeRedemption(t *testing.T) {
	ctx := context.Background()
	h := defaultHarness(t)
	previous := newKeypair(t)

	// previous owned the ticket before transferring it to holder.
	_, err := h.v.VerifyTicket(ctx, signedChallenge(t, previous, "evt-1", "nonce", "tix-42"))
	assert.ErrorIs(t, err, verification.ErrTicketVerification)
	assert.False(t, h.store.attended("tix-42"))
	assert.Zero(t, h.cache.acquired.Load())

	_, err = h.v.VerifyTicket(ctx, signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42"))
	assert.NoError(t, err)
}

func TestVerifyTicket_ConcurrentRedemption(t *testing.T) {
	ctx := context.Background()
	h := defaultHarness(t)
	ch := signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42")

	const n = 25
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = h.v.VerifyTicket(ctx, ch)
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, verification.ErrAlreadyAttended):
			already++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, already)
	assert.Equal(t, 1, h.store.transitions)
	assert.Equal(t, h.cache.acquired.Load(), h.cache.released.Load())
}

func TestVerifyTicket_ConcurrentRedemptionSerializedByGuard(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	holder := newKeypair(t)
	server := newKeypair(t)
	ledger.setOwner("tix-42", holder.pub)
	store := &blindStore{typeIndex: 2, hold: 5 * time.Millisecond}
	cache := &flakyCache{LockCache: lockcache.NewMemoryLockCache()}
	guard := verification.NewAttendanceGuard(cache, verification.GuardOptions{
		AcquireTimeout: 5 * time.Second,
		RetryDelay:     time.Millisecond,
	})
	v, err := verification.NewVerifier(ledger, store, guard, server.priv)
	require.NoError(t, err)
	ch := signedChallenge(t, holder, "evt-1", "nonce", "tix-42")

	const n = 25
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = v.VerifyTicket(ctx, ch)
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, verification.ErrAlreadyAttended):
			already++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, already)
	assert.Equal(t, int32(1), store.flips.Load())
	assert.Equal(t, int32(1), store.maxInFlight.Load())
	assert.Equal(t, cache.acquired.Load(), cache.released.Load())
}

func TestVerifyTicket_DistinctTicketsIndependent(t *testing.T) {
	ctx := context.Background()
	h := defaultHarness(t)
	h.ledger.setOwner("tix-43", h.holder.pub)
	h.store.add("tix-43", 1)

	_, err := h.v.VerifyTicket(ctx, signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42"))
	require.NoError(t, err)
	resp, err := h.v.VerifyTicket(ctx, signedChallenge(t, h.holder, "evt-1", "nonce", "tix-43"))
	require.NoError(t, err)
	assert.Equal(t, uint8(1), resp.TicketTypeIndex)
}

func TestVerifyTicket_BadChallenge(t *testing.T) {
	ctx := context.Background()
	h := defaultHarness(t)
	ch := signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42")

	tampered := ch
	tampered.CodeChallenge = "replayed"
	_, err := h.v.VerifyTicket(ctx, tampered)
	assert.ErrorIs(t, err, verification.ErrTicketVerification)
	assert.ErrorIs(t, err, verification.ErrInvalidSignature)

	badKey := ch
	badKey.ClaimedOwnerPubkey = "not-a-key"
	_, err = h.v.VerifyTicket(ctx, badKey)
	assert.ErrorIs(t, err, verification.ErrTicketVerification)

	missing := ch
	missing.EventID = ""
	_, err = h.v.VerifyTicket(ctx, missing)
	assert.ErrorIs(t, err, verification.ErrTicketVerification)
	assert.ErrorIs(t, err, verification.ErrMissingField)

	assert.Zero(t, h.ledger.calls.Load())
	assert.Zero(t, h.store.calls.Load())
	assert.Zero(t, h.cache.calls.Load())
}

func TestVerifyTicket_NotFound(t *testing.T) {
	ctx := context.Background()
	h := defaultHarness(t)

	_, err := h.v.VerifyTicket(ctx, signedChallenge(t, h.holder, "evt-1", "nonce", "tix-missing"))
	assert.ErrorIs(t, err, verification.ErrTicketNotFound)
	assert.ErrorIs(t, err, verification.ErrTicketVerification)

	// Store row exists but the ledger has no such account.
	h.store.add("tix-burned", 0)
	_, err = h.v.VerifyTicket(ctx, signedChallenge(t, h.holder, "evt-1", "nonce", "tix-burned"))
	assert.ErrorIs(t, err, verification.ErrTicketVerification)
	assert.ErrorIs(t, err, verification.ErrLedgerTicketNotFound)
}

func TestVerifyTicket_LockTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, verification.GuardOptions{
		AcquireTimeout: 50 * time.Millisecond,
		RetryDelay:     5 * time.Millisecond,
	})
	key := verification.AttendanceKey{EventID: "evt-1", TicketReference: "tix-42"}
	held, err := h.cache.AcquireLease(ctx, key.LockKey(), time.Minute)
	require.NoError(t, err)

	_, err = h.v.VerifyTicket(ctx, signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42"))
	assert.ErrorIs(t, err, verification.ErrLockTimeout)
	assert.True(t, verification.IsRetryable(err))
	assert.False(t, h.store.attended("tix-42"))

	require.NoError(t, h.cache.ReleaseLease(ctx, held))
	_, err = h.v.VerifyTicket(ctx, signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42"))
	assert.NoError(t, err)
}

func TestVerifyTicket_LeaseReleasedOnFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, verification.GuardOptions{
		AcquireTimeout: 50 * time.Millisecond,
		RetryDelay:     5 * time.Millisecond,
	})
	ch := signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42")

	// One failure for the pre-lease lookup and one under the lease.
	h.cache.failGets.Store(2)
	_, err := h.v.VerifyTicket(ctx, ch)
	require.Error(t, err)
	assert.NotErrorIs(t, err, verification.ErrLockTimeout)
	assert.Equal(t, int32(1), h.cache.acquired.Load())
	assert.Equal(t, int32(1), h.cache.released.Load())

	_, err = h.v.VerifyTicket(ctx, ch)
	assert.NoError(t, err)
}

func TestVerifyTicket_StoreAlreadyAttendedHealsMarker(t *testing.T) {
	ctx := context.Background()
	h := defaultHarness(t)
	h.store.tickets["tix-42"].attended = true

	_, err := h.v.VerifyTicket(ctx, signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42"))
	assert.ErrorIs(t, err, verification.ErrAlreadyAttended)

	key := verification.AttendanceKey{EventID: "evt-1", TicketReference: "tix-42"}
	_, found, err := h.cache.LockCache.Get(ctx, key.MarkerKey())
	require.NoError(t, err)
	assert.True(t, found)
}

func TestVerifyTicket_MarkerWriteFailureStillCommits(t *testing.T) {
	ctx := context.Background()
	h := defaultHarness(t)
	h.cache.dropWrite.Store(true)
	ch := signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42")

	_, err := h.v.VerifyTicket(ctx, ch)
	require.NoError(t, err)

	// The store flag still prevents a second redemption.
	_, err = h.v.VerifyTicket(ctx, ch)
	assert.ErrorIs(t, err, verification.ErrAlreadyAttended)
	assert.Equal(t, 1, h.store.transitions)
}

func TestVerifyTicket_StoreFailure(t *testing.T) {
	ctx := context.Background()
	h := defaultHarness(t)
	h.store.setAttendErr = errors.New("serialization failure")

	_, err := h.v.VerifyTicket(ctx, signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, verification.ErrAlreadyAttended)

	key := verification.AttendanceKey{EventID: "evt-1", TicketReference: "tix-42"}
	_, found, err := h.cache.LockCache.Get(ctx, key.MarkerKey())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewVerifier_Validation(t *testing.T) {
	h := defaultHarness(t)
	guard := verification.NewAttendanceGuard(h.cache, verification.DefaultGuardOptions())

	_, err := verification.NewVerifier(nil, h.store, guard, h.server.priv)
	assert.Error(t, err)
	_, err = verification.NewVerifier(h.ledger, h.store, guard, h.server.priv[:32])
	assert.ErrorIs(t, err, verification.ErrInvalidKey)
}

func TestVerifyTicket_FastPathLookupFailureLogged(t *testing.T) {
	ctx := context.Background()
	h := defaultHarness(t)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	v, err := verification.NewVerifier(h.ledger, h.store,
		verification.NewAttendanceGuard(h.cache, verification.GuardOptions{RetryDelay: time.Millisecond}),
		h.server.priv, verification.WithLogger(logger))
	require.NoError(t, err)

	h.cache.failGets.Store(1)
	_, err = v.VerifyTicket(ctx, signedChallenge(t, h.holder, "evt-1", "nonce", "tix-42"))
	require.NoError(t, err)
	assert.True(t, h.store.attended("tix-42"))

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.DebugLevel && e.Message == "[AttendanceGuard] marker lookup before lease failed" {
			logged = true
			assert.NotNil(t, e.Data[logrus.ErrorKey])
		}
	}
	assert.True(t, logged)
}
