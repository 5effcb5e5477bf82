// go-verification/ownership.go
package verification

import (
	"context"
	"crypto/ed25519"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Owner is whoever the ledger currently records as holding a ticket.
// Ledgers identify holders differently (raw pubkey, derived address), so an
// Owner decides for itself whether a claimed key is a match.
type Owner interface {
	Matches(pub ed25519.PublicKey) bool
	String() string
}

// PubkeyOwner is an owner recorded as a raw ed25519 public key.
type PubkeyOwner ed25519.PublicKey

func (o PubkeyOwner) Matches(pub ed25519.PublicKey) bool {
	return len(o) == ed25519.PublicKeySize &&
		subtle.ConstantTimeCompare(o, pub) == 1
}

func (o PubkeyOwner) String() string { return base58.Encode(o) }

// Ledger is the authoritative source of current ticket ownership.
// Implementations return ErrLedgerTicketNotFound when the ticket does not
// exist on the ledger.
type Ledger interface {
	CurrentOwner(ctx context.Context, ticketReference string) (Owner, error)
}

// TicketStore is the relational projection of ledger state.
type TicketStore interface {
	// TicketTypeIndex returns ErrTicketNotFound when there is no row.
	TicketTypeIndex(ctx context.Context, ticketReference string) (uint8, error)
	// SetAttended flips attended false -> true. It returns ErrAlreadyAttended
	// if the flag was already set.
	SetAttended(ctx context.Context, ticketReference string) error
}

// OwnershipResolver reconciles the two sources of truth: the store is only
// trusted for the type index, the ledger only for ownership.
type OwnershipResolver struct {
	ledger Ledger
	store  TicketStore
}

func NewOwnershipResolver(ledger Ledger, store TicketStore) *OwnershipResolver {
	return &OwnershipResolver{ledger: ledger, store: store}
}

func (r *OwnershipResolver) CurrentOwner(ctx context.Context, ticketReference string) (Owner, error) {
	owner, err := r.ledger.CurrentOwner(ctx, ticketReference)
	if err != nil {
		if errors.Is(err, ErrLedgerTicketNotFound) || errors.Is(err, ErrOwnershipMismatch) {
			return nil, fmt.Errorf("%w: %w", ErrTicketVerification, err)
		}
		return nil, fmt.Errorf("ledger lookup for %s: %w", ticketReference, err)
	}
	return owner, nil
}

func (r *OwnershipResolver) TicketTypeIndex(ctx context.Context, ticketReference string) (uint8, error) {
	idx, err := r.store.TicketTypeIndex(ctx, ticketReference)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return 0, fmt.Errorf("%w: %w", ErrTicketVerification, err)
		}
		return 0, fmt.Errorf("store lookup for %s: %w", ticketReference, err)
	}
	return idx, nil
}

// Resolve loads the type index and confirms claimed is the current owner.
// A mismatch is an expected outcome of transfer races, not a fault.
func (r *OwnershipResolver) Resolve(ctx context.Context, ticketReference string, claimed ed25519.PublicKey) (uint8, error) {
	idx, err := r.TicketTypeIndex(ctx, ticketReference)
	if err != nil {
		return 0, err
	}
	owner, err := r.CurrentOwner(ctx, ticketReference)
	if err != nil {
		return 0, err
	}
	if !owner.Matches(claimed) {
		return 0, fmt.Errorf("%w: %w: ledger owner is %s", ErrTicketVerification, ErrOwnershipMismatch, owner)
	}
	return idx, nil
}
