// go-verification/codec.go
package verification

import (
	"fmt"

	"github.com/near/borsh-go"
	"golang.org/x/crypto/sha3"
)

// Field order below is the wire order shared with holder wallets and gate
// software. Borsh length-prefixes every string and the two messages differ
// in field count, so a challenge can never decode as an attestation.
type challengeMessage struct {
	EventID         string
	CodeChallenge   string
	TicketReference string
}

type attestationMessage struct {
	EventID           string
	CodeChallenge     string
	TicketOwnerPubkey string
	TicketReference   string
	TicketTypeIndex   uint8
}

// EncodeChallengeMessage returns the Borsh bytes a ticket holder signs to
// prove intent to redeem ticketReference at eventID.
func EncodeChallengeMessage(eventID, codeChallenge, ticketReference string) ([]byte, error) {
	if err := requireFields(
		"event_id", eventID,
		"code_challenge", codeChallenge,
		"ticket_reference", ticketReference,
	); err != nil {
		return nil, err
	}
	return borsh.Serialize(challengeMessage{
		EventID:         eventID,
		CodeChallenge:   codeChallenge,
		TicketReference: ticketReference,
	})
}

// EncodeAttestationMessage returns the Borsh bytes the service signs when it
// issues a VerificationResponse.
func EncodeAttestationMessage(
	eventID, codeChallenge, ticketOwnerPubkey, ticketReference string,
	ticketTypeIndex uint8,
) ([]byte, error) {
	if err := requireFields(
		"event_id", eventID,
		"code_challenge", codeChallenge,
		"ticket_owner_pubkey", ticketOwnerPubkey,
		"ticket_reference", ticketReference,
	); err != nil {
		return nil, err
	}
	return borsh.Serialize(attestationMessage{
		EventID:           eventID,
		CodeChallenge:     codeChallenge,
		TicketOwnerPubkey: ticketOwnerPubkey,
		TicketReference:   ticketReference,
		TicketTypeIndex:   ticketTypeIndex,
	})
}

// Digest is the keccak256 of an encoded message. Signatures are always made
// over the digest, never over the raw bytes.
func Digest(message []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(message)
	return h.Sum(nil)
}

// requireFields takes name/value pairs.
func requireFields(kv ...string) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, kv[i])
		}
	}
	return nil
}
