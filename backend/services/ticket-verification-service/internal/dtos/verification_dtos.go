package dtos

import "github.com/ticketland/mono-repo/backend/shared/go-verification"

// VerifyTicketRequest is the holder's signed challenge as relayed by a gate.
type VerifyTicketRequest struct {
	EventID            string `json:"event_id" validate:"required,max=128"`
	CodeChallenge      string `json:"code_challenge" validate:"required,max=256"`
	TicketReference    string `json:"ticket_reference" validate:"required,max=128"`
	ClaimedOwnerPubkey string `json:"claimed_owner_pubkey" validate:"required,max=64"`
	Signature          string `json:"signature" validate:"required,max=128"`
}

func (r VerifyTicketRequest) Challenge() verification.VerificationChallenge {
	return verification.VerificationChallenge{
		EventID:            r.EventID,
		CodeChallenge:      r.CodeChallenge,
		TicketReference:    r.TicketReference,
		ClaimedOwnerPubkey: r.ClaimedOwnerPubkey,
		Signature:          r.Signature,
	}
}

// VerifyTicketResponse carries the attestation twice: as JSON and as the
// base64 CBOR form gate devices render into a QR code.
type VerifyTicketResponse struct {
	Attestation verification.VerificationResponse `json:"attestation"`
	Compact     string                            `json:"compact"`
}

// ValidateResultRequest takes either the JSON attestation or its compact
// form.
type ValidateResultRequest struct {
	Attestation *verification.VerificationResponse `json:"attestation,omitempty" validate:"required_without=Compact"`
	Compact     string                             `json:"compact,omitempty" validate:"required_without=Attestation,omitempty,base64"`
}

type ValidateResultResponse struct {
	Valid       bool                              `json:"valid"`
	Attestation verification.VerificationResponse `json:"attestation"`
}

type VerifierKeyResponse struct {
	PublicKey string `json:"public_key"`
	Algorithm string `json:"algorithm"`
}
