package services

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/dtos"
	"github.com/ticketland/mono-repo/backend/shared/go-utils"
	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

type VerificationService interface {
	VerifyTicket(ctx context.Context, gateID string, req dtos.VerifyTicketRequest) (*dtos.VerifyTicketResponse, error)
	ValidateResult(ctx context.Context, req dtos.ValidateResultRequest) (*dtos.ValidateResultResponse, error)
	VerifierKey() dtos.VerifierKeyResponse
}

type verificationService struct {
	verifier *verification.Verifier
}

func NewVerificationService(v *verification.Verifier) VerificationService {
	return &verificationService{verifier: v}
}

func (s *verificationService) VerifyTicket(ctx context.Context, gateID string, req dtos.VerifyTicketRequest) (*dtos.VerifyTicketResponse, error) {
	resp, err := s.verifier.VerifyTicket(ctx, req.Challenge())
	if err != nil {
		utils.Logger.WithFields(logrus.Fields{
			"gate_id":          gateID,
			"event_id":         req.EventID,
			"ticket_reference": req.TicketReference,
		}).WithError(err).Info("Ticket verification refused")
		return nil, toAppError(err)
	}

	compact, err := verification.EncodeCompact(resp)
	if err != nil {
		return nil, &utils.AppError{StatusCode: http.StatusInternalServerError, Code: utils.ErrCodeInternal, Message: "Failed to encode attestation", Err: err}
	}

	utils.Logger.WithFields(logrus.Fields{
		"gate_id":          gateID,
		"event_id":         resp.EventID,
		"ticket_reference": resp.TicketReference,
	}).Info("Ticket verified and marked attended")

	return &dtos.VerifyTicketResponse{
		Attestation: resp,
		Compact:     base64.StdEncoding.EncodeToString(compact),
	}, nil
}

func (s *verificationService) ValidateResult(_ context.Context, req dtos.ValidateResultRequest) (*dtos.ValidateResultResponse, error) {
	var resp verification.VerificationResponse
	switch {
	case req.Attestation != nil:
		resp = *req.Attestation
	default:
		raw, err := base64.StdEncoding.DecodeString(req.Compact)
		if err != nil {
			return nil, &utils.AppError{StatusCode: http.StatusBadRequest, Code: utils.ErrCodeInvalidPayload, Message: "Compact attestation is not base64", Err: err}
		}
		if resp, err = verification.DecodeCompact(raw); err != nil {
			return nil, toAppError(err)
		}
	}

	if err := verification.ValidateVerificationResult(resp, s.verifier.PublicKey()); err != nil {
		return nil, toAppError(err)
	}
	return &dtos.ValidateResultResponse{Valid: true, Attestation: resp}, nil
}

func (s *verificationService) VerifierKey() dtos.VerifierKeyResponse {
	return dtos.VerifierKeyResponse{
		PublicKey: verification.EncodePublicKey(s.verifier.PublicKey()),
		Algorithm: "ed25519-keccak256",
	}
}

// toAppError maps verification outcomes onto HTTP. TicketNotFound is
// checked before TicketVerification because missing tickets carry both.
func toAppError(err error) error {
	switch {
	case errors.Is(err, verification.ErrAlreadyAttended):
		return &utils.AppError{StatusCode: http.StatusConflict, Code: utils.ErrCodeAlreadyAttended, Message: "Ticket already checked in", Err: err}
	case errors.Is(err, verification.ErrLockTimeout):
		return &utils.AppError{StatusCode: http.StatusServiceUnavailable, Code: utils.ErrCodeSystemBusy, Message: "System busy, please retry", Err: err}
	case errors.Is(err, verification.ErrInvalidVerificationResult):
		return &utils.AppError{StatusCode: http.StatusUnprocessableEntity, Code: utils.ErrCodeInvalidVerificationResult, Message: "Attestation is not valid", Err: err}
	case errors.Is(err, verification.ErrTicketNotFound):
		return &utils.AppError{StatusCode: http.StatusNotFound, Code: utils.ErrCodeNotFound, Message: "Ticket not found", Err: err}
	case errors.Is(err, verification.ErrTicketVerification):
		return &utils.AppError{StatusCode: http.StatusForbidden, Code: utils.ErrCodeTicketVerificationFailed, Message: "Ticket could not be verified", Err: err}
	default:
		return &utils.AppError{StatusCode: http.StatusInternalServerError, Code: utils.ErrCodeInternal, Message: "Verification failed", Err: err}
	}
}
