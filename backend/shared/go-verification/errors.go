// go-verification/errors.go
package verification

import "errors"

// Outcomes of a verification call. Composite failures wrap more than one
// of these, so callers should always match with errors.Is.
var (
	// ErrInvalidSignature means a challenge or attestation signature did not
	// verify. Key decode errors are reported the same way.
	ErrInvalidSignature = errors.New("invalid_signature")

	// ErrTicketVerification means the holder's claim is false: bad challenge
	// signature, ownership mismatch, or a ticket that does not exist.
	ErrTicketVerification = errors.New("ticket_verification_error")

	// ErrTicketNotFound means the projection store has no row for the ticket.
	ErrTicketNotFound = errors.New("ticket_not_found")

	// ErrLockTimeout means the attendance lease was not obtained in time.
	// Safe to retry with backoff.
	ErrLockTimeout = errors.New("lock_timeout")

	// ErrAlreadyAttended is permanent for the ticket.
	ErrAlreadyAttended = errors.New("already_attended")

	// ErrInvalidVerificationResult is produced only by offline validation.
	ErrInvalidVerificationResult = errors.New("invalid_verification_result")
)

// Lower level reasons, always wrapped by one of the outcomes above before
// they leave the Verifier.
var (
	ErrMissingField         = errors.New("missing_field")
	ErrOwnershipMismatch    = errors.New("ownership_mismatch")
	ErrLedgerTicketNotFound = errors.New("ledger_ticket_not_found")
	ErrLeaseHeld            = errors.New("lease_held")
	ErrInvalidKey           = errors.New("invalid_key")
)

// IsRetryable reports whether the same call may succeed later without any
// change to its inputs.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
