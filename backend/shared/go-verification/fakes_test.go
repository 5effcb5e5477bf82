package verification_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

var errPoisoned = errors.New("poisoned dependency called")

type fakeLedger struct {
	mu       sync.Mutex
	owners   map[string]verification.Owner
	poisoned atomic.Bool
	calls    atomic.Int32
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{owners: map[string]verification.Owner{}}
}

func (l *fakeLedger) setOwner(ref string, pub ed25519.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owners[ref] = verification.PubkeyOwner(pub)
}

func (l *fakeLedger) CurrentOwner(_ context.Context, ref string) (verification.Owner, error) {
	l.calls.Add(1)
	if l.poisoned.Load() {
		return nil, errPoisoned
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.owners[ref]
	if !ok {
		return nil, verification.ErrLedgerTicketNotFound
	}
	return o, nil
}

type fakeTicket struct {
	typeIndex uint8
	attended  bool
}

type fakeStore struct {
	mu           sync.Mutex
	tickets      map[string]*fakeTicket
	transitions  int
	poisoned     atomic.Bool
	calls        atomic.Int32
	setAttendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tickets: map[string]*fakeTicket{}}
}

func (s *fakeStore) add(ref string, typeIndex uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[ref] = &fakeTicket{typeIndex: typeIndex}
}

func (s *fakeStore) attended(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ref]
	return ok && t.attended
}

func (s *fakeStore) TicketTypeIndex(_ context.Context, ref string) (uint8, error) {
	s.calls.Add(1)
	if s.poisoned.Load() {
		return 0, errPoisoned
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ref]
	if !ok {
		return 0, verification.ErrTicketNotFound
	}
	return t.typeIndex, nil
}

func (s *fakeStore) SetAttended(_ context.Context, ref string) error {
	s.calls.Add(1)
	if s.poisoned.Load() {
		return errPoisoned
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setAttendErr != nil {
		return s.setAttendErr
	}
	t, ok := s.tickets[ref]
	if !ok {
		return verification.ErrTicketNotFound
	}
	if t.attended {
		return verification.ErrAlreadyAttended
	}
	t.attended = true
	s.transitions++
	return nil
}

// blindStore flips attended with no read of the current value, like a bare
// UPDATE ... SET attended=true. Only the guard keeps flips to one.
type blindStore struct {
	typeIndex   uint8
	hold        time.Duration
	flips       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *blindStore) TicketTypeIndex(context.Context, string) (uint8, error) {
	return s.typeIndex, nil
}

func (s *blindStore) SetAttended(context.Context, string) error {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxInFlight.Load()
		if n <= m || s.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(s.hold)
	s.flips.Add(1)
	return nil
}

// flakyCache wraps a LockCache and can poison it or fail a single Get.
type flakyCache struct {
	verification.LockCache
	poisoned  atomic.Bool
	failGets  atomic.Int32
	calls     atomic.Int32
	acquired  atomic.Int32
	released  atomic.Int32
	dropWrite atomic.Bool
}

func (c *flakyCache) AcquireLease(ctx context.Context, key string, ttl time.Duration) (verification.Lease, error) {
	c.calls.Add(1)
	if c.poisoned.Load() {
		return verification.Lease{}, errPoisoned
	}
	l, err := c.LockCache.AcquireLease(ctx, key, ttl)
	if err == nil {
		c.acquired.Add(1)
	}
	return l, err
}

func (c *flakyCache) ReleaseLease(ctx context.Context, l verification.Lease) error {
	c.calls.Add(1)
	if c.poisoned.Load() {
		return errPoisoned
	}
	c.released.Add(1)
	return c.LockCache.ReleaseLease(ctx, l)
}

func (c *flakyCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.calls.Add(1)
	if c.poisoned.Load() {
		return "", false, errPoisoned
	}
	if c.failGets.Load() > 0 {
		c.failGets.Add(-1)
		return "", false, errors.New("cache unavailable")
	}
	return c.LockCache.Get(ctx, key)
}

func (c *flakyCache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.calls.Add(1)
	if c.poisoned.Load() {
		return false, errPoisoned
	}
	if c.dropWrite.Load() {
		return false, errors.New("cache unavailable")
	}
	return c.LockCache.SetIfAbsent(ctx, key, value, ttl)
}

type keypair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newKeypair(t *testing.T) keypair {
	t.Helper()
	pub, priv, err := verification.GenerateKeypair()
	require.NoError(t, err)
	return keypair{pub: pub, priv: priv}
}

func signedChallenge(t *testing.T, kp keypair, eventID, code, ref string) verification.VerificationChallenge {
	t.Helper()
	msg, err := verification.EncodeChallengeMessage(eventID, code, ref)
	require.NoError(t, err)
	sig, err := verification.Sign(msg, kp.priv)
	require.NoError(t, err)
	return verification.VerificationChallenge{
		EventID:            eventID,
		CodeChallenge:      code,
		TicketReference:    ref,
		ClaimedOwnerPubkey: verification.EncodePublicKey(kp.pub),
		Signature:          sig,
	}
}
