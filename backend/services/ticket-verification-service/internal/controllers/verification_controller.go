package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/constants"
	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/dtos"
	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/services"
	shared_dtos "github.com/ticketland/mono-repo/backend/shared/go-dtos"
	"github.com/ticketland/mono-repo/backend/shared/go-middleware"
	"github.com/ticketland/mono-repo/backend/shared/go-utils"
)

var verificationValidate = validator.New()

type VerificationController struct {
	service services.VerificationService
}

func NewVerificationController(s services.VerificationService) *VerificationController {
	return &VerificationController{service: s}
}

// POST /api/v1/tickets/verify
func (c *VerificationController) VerifyTicketHandler(w http.ResponseWriter, r *http.Request) {
	gateID, ok := middleware.GateIDFromContext(r.Context())
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing gate id in context", nil)
		return
	}

	var req dtos.VerifyTicketRequest
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid payload", nil, err)
		return
	}
	if err := verificationValidate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Missing or oversized challenge fields", shared_dtos.ValidationDetails(err), err)
		return
	}

	resp, err := c.service.VerifyTicket(r.Context(), gateID, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// POST /api/v1/tickets/validate
func (c *VerificationController) ValidateResultHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.ValidateResultRequest
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid payload", nil, err)
		return
	}
	if err := verificationValidate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Provide an attestation or its compact form", shared_dtos.ValidationDetails(err), err)
		return
	}

	resp, err := c.service.ValidateResult(r.Context(), req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// GET /api/v1/tickets/verifier-key
func (c *VerificationController) VerifierKeyHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, c.service.VerifierKey())
}
