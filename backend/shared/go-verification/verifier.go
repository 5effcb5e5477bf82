// go-verification/verifier.go
package verification

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type state string

const (
	stateReceivedChallenge state = "received_challenge"
	stateSignatureChecked  state = "signature_checked"
	stateOwnershipChecked  state = "ownership_checked"
	stateLockAcquired      state = "lock_acquired"
	stateAttendanceChecked state = "attendance_checked"
	stateCommitted         state = "committed"
)

type Option func(*Verifier)

func WithLogger(l logrus.FieldLogger) Option {
	return func(v *Verifier) { v.log = l }
}

// Verifier runs the redemption protocol for one service instance. It holds
// no per-ticket state; all coordination goes through the AttendanceGuard.
type Verifier struct {
	resolver  *OwnershipResolver
	store     TicketStore
	guard     *AttendanceGuard
	serverKey ed25519.PrivateKey
	log       logrus.FieldLogger
}

func NewVerifier(
	ledger Ledger,
	store TicketStore,
	guard *AttendanceGuard,
	serverKey ed25519.PrivateKey,
	opts ...Option,
) (*Verifier, error) {
	if ledger == nil || store == nil || guard == nil {
		return nil, errors.New("verifier requires a ledger, a store and an attendance guard")
	}
	if len(serverKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: server key must be %d bytes", ErrInvalidKey, ed25519.PrivateKeySize)
	}
	v := &Verifier{
		resolver:  NewOwnershipResolver(ledger, store),
		store:     store,
		guard:     guard,
		serverKey: serverKey,
		log:       logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

func (v *Verifier) PublicKey() ed25519.PublicKey {
	return v.serverKey.Public().(ed25519.PublicKey)
}

// VerifyTicket checks the holder's challenge, confirms ownership against the
// ledger, and commits attendance at most once per (event, ticket). The lease
// is released on every exit path.
func (v *Verifier) VerifyTicket(ctx context.Context, ch VerificationChallenge) (VerificationResponse, error) {
	log := v.log.WithFields(logrus.Fields{
		"event_id":         ch.EventID,
		"ticket_reference": ch.TicketReference,
	})
	step := func(s state) { log.WithField("state", s).Debug("[Verifier] transition") }
	step(stateReceivedChallenge)

	claimed, err := v.checkChallenge(ch)
	if err != nil {
		log.WithError(err).Warn("[Verifier] challenge rejected")
		return VerificationResponse{}, err
	}
	step(stateSignatureChecked)

	typeIndex, err := v.resolver.Resolve(ctx, ch.TicketReference, claimed)
	if err != nil {
		if errors.Is(err, ErrTicketVerification) {
			log.WithError(err).Warn("[Verifier] ownership rejected")
		} else {
			log.WithError(err).Error("[Verifier] ownership lookup failed")
		}
		return VerificationResponse{}, err
	}
	step(stateOwnershipChecked)

	key := AttendanceKey{EventID: ch.EventID, TicketReference: ch.TicketReference}

	// Repeat scans of a redeemed ticket skip the lease round trip. The
	// answer is re-checked under the lease before anything is written.
	attended, err := v.guard.IsAlreadyAttended(ctx, key)
	switch {
	case err != nil:
		log.WithError(err).Debug("[AttendanceGuard] marker lookup before lease failed")
	case attended:
		log.Info("[Verifier] ticket already attended")
		return VerificationResponse{}, ErrAlreadyAttended
	}

	lease, err := v.guard.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			log.WithError(err).Warn("[Verifier] attendance lease timed out")
		} else {
			log.WithError(err).Error("[Verifier] attendance lease failed")
		}
		return VerificationResponse{}, err
	}
	released := false
	defer func() {
		if released {
			return
		}
		if rerr := v.guard.Release(context.WithoutCancel(ctx), lease); rerr != nil {
			log.WithError(rerr).Error("[Verifier] release lease")
		}
	}()
	step(stateLockAcquired)

	if err := v.commit(ctx, log, key); err != nil {
		return VerificationResponse{}, err
	}
	step(stateAttendanceChecked)

	if err := v.guard.Release(context.WithoutCancel(ctx), lease); err != nil {
		log.WithError(err).Error("[Verifier] release lease")
	}
	released = true

	resp, err := BuildAndSign(ch, typeIndex, v.serverKey)
	if err != nil {
		log.WithError(err).Error("[Verifier] sign attestation")
		return VerificationResponse{}, err
	}
	step(stateCommitted)
	log.Info("[Verifier] ticket verified")
	return resp, nil
}

func (v *Verifier) checkChallenge(ch VerificationChallenge) (ed25519.PublicKey, error) {
	claimed, err := ParsePublicKey(ch.ClaimedOwnerPubkey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: claimed owner key", ErrTicketVerification, ErrInvalidSignature)
	}
	msg, err := EncodeChallengeMessage(ch.EventID, ch.CodeChallenge, ch.TicketReference)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTicketVerification, err)
	}
	if err := VerifyWithKey(msg, claimed, ch.Signature); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTicketVerification, err)
	}
	return claimed, nil
}

// commit runs under the lease: marker check, store flip, marker write.
func (v *Verifier) commit(ctx context.Context, log logrus.FieldLogger, key AttendanceKey) error {
	attended, err := v.guard.IsAlreadyAttended(ctx, key)
	if err != nil {
		log.WithError(err).Error("[AttendanceGuard] marker lookup failed")
		return err
	}
	if attended {
		log.Info("[AttendanceGuard] ticket already attended")
		return ErrAlreadyAttended
	}

	if err := v.store.SetAttended(ctx, key.TicketReference); err != nil {
		if errors.Is(err, ErrAlreadyAttended) {
			// The store is durable, the cache is not. Heal the marker so the
			// next scan short-circuits.
			if merr := v.guard.MarkAttended(ctx, key); merr != nil && !errors.Is(merr, ErrAlreadyAttended) {
				log.WithError(merr).Warn("[AttendanceGuard] restore marker")
			}
			log.Info("[AttendanceGuard] store reports ticket already attended")
			return ErrAlreadyAttended
		}
		log.WithError(err).Error("[AttendanceGuard] store update failed")
		return fmt.Errorf("set attended: %w", err)
	}

	if err := v.guard.MarkAttended(ctx, key); err != nil && !errors.Is(err, ErrAlreadyAttended) {
		log.WithError(err).Warn("[AttendanceGuard] marker write failed after store commit")
	}
	return nil
}
