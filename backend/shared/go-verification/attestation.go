// go-verification/attestation.go
package verification

import (
	"crypto/ed25519"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// VerificationChallenge is what a ticket holder presents at the gate.
type VerificationChallenge struct {
	EventID            string `json:"event_id" validate:"required"`
	CodeChallenge      string `json:"code_challenge" validate:"required"`
	TicketReference    string `json:"ticket_reference" validate:"required"`
	ClaimedOwnerPubkey string `json:"claimed_owner_pubkey" validate:"required"`
	Signature          string `json:"signature" validate:"required"`
}

// VerificationResponse is the service-signed attestation. It is immutable
// once issued and can be validated with nothing but the server public key.
type VerificationResponse struct {
	EventID           string `json:"event_id" cbor:"1,keyasint"`
	CodeChallenge     string `json:"code_challenge" cbor:"2,keyasint"`
	TicketOwnerPubkey string `json:"ticket_owner_pubkey" cbor:"3,keyasint"`
	TicketReference   string `json:"ticket_reference" cbor:"4,keyasint"`
	TicketTypeIndex   uint8  `json:"ticket_type_index" cbor:"5,keyasint"`
	ServerSig         string `json:"server_sig" cbor:"6,keyasint"`
}

func (r VerificationResponse) message() ([]byte, error) {
	return EncodeAttestationMessage(
		r.EventID, r.CodeChallenge, r.TicketOwnerPubkey, r.TicketReference, r.TicketTypeIndex,
	)
}

// BuildAndSign issues an attestation for a challenge that has already been
// verified. It performs no I/O.
func BuildAndSign(ch VerificationChallenge, ticketTypeIndex uint8, serverKey ed25519.PrivateKey) (VerificationResponse, error) {
	resp := VerificationResponse{
		EventID:           ch.EventID,
		CodeChallenge:     ch.CodeChallenge,
		TicketOwnerPubkey: ch.ClaimedOwnerPubkey,
		TicketReference:   ch.TicketReference,
		TicketTypeIndex:   ticketTypeIndex,
	}
	msg, err := resp.message()
	if err != nil {
		return VerificationResponse{}, err
	}
	sig, err := Sign(msg, serverKey)
	if err != nil {
		return VerificationResponse{}, fmt.Errorf("sign attestation: %w", err)
	}
	resp.ServerSig = sig
	return resp, nil
}

// ValidateVerificationResult checks an attestation offline. Any failure,
// including missing fields, is reported as ErrInvalidVerificationResult.
func ValidateVerificationResult(resp VerificationResponse, serverPub ed25519.PublicKey) error {
	msg, err := resp.message()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVerificationResult, err)
	}
	if err := VerifyWithKey(msg, serverPub, resp.ServerSig); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVerificationResult, err)
	}
	return nil
}

var (
	compactEnc cbor.EncMode
	compactDec cbor.DecMode
)

func init() {
	var err error
	if compactEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if compactDec, err = (cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 16,
	}).DecMode(); err != nil {
		panic(err)
	}
}

// EncodeCompact returns the deterministic CBOR form used for QR codes and
// offline transfer between gate devices.
func EncodeCompact(resp VerificationResponse) ([]byte, error) {
	return compactEnc.Marshal(resp)
}

func DecodeCompact(b []byte) (VerificationResponse, error) {
	var resp VerificationResponse
	if err := compactDec.Unmarshal(b, &resp); err != nil {
		return VerificationResponse{}, fmt.Errorf("%w: %w", ErrInvalidVerificationResult, err)
	}
	return resp, nil
}
