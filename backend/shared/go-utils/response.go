// backend/shared/go-utils/response.go
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	ErrCodeInvalidPayload            = "invalid_payload"
	ErrCodeValidation                = "validation_error"
	ErrCodeUnauthorized              = "unauthorized"
	ErrCodeTokenExpired              = "token_expired"
	ErrCodeInternal                  = "internal_server_error"
	ErrCodeNotFound                  = "not_found"
	ErrCodeConflict                  = "conflict"
	ErrCodeRowVersionConflict        = "row_version_conflict"
	ErrCodeTicketVerificationFailed  = "ticket_verification_failed"
	ErrCodeAlreadyAttended           = "already_attended"
	ErrCodeSystemBusy                = "system_busy"
	ErrCodeInvalidVerificationResult = "invalid_verification_result"
	ErrCodeExternalServiceFailure    = "external_service_failure"
)

// ErrorResponse carries an optional `Details` field for extra context.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RespondErrorWithCode builds a JSON error response with a standard
// code and message. The optional `details` is included if non-nil.
func RespondErrorWithCode(
	w http.ResponseWriter,
	status int,
	errorCode string,
	publicMessage string,
	details any,
	devErrs ...error,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errBody := ErrorResponse{
		Code:    errorCode,
		Message: publicMessage,
	}
	if details != nil {
		errBody.Details = details
	}
	_ = json.NewEncoder(w).Encode(errBody)

	// Client-side outcomes are expected traffic at a gate, so only 5xx is an error.
	entry := Logger.WithFields(logrus.Fields{"status": status, "code": errorCode})
	if len(devErrs) > 0 && devErrs[0] != nil {
		entry = entry.WithError(devErrs[0])
	}
	if status >= http.StatusInternalServerError {
		entry.Error(publicMessage)
	} else {
		entry.Warn(publicMessage)
	}
}

// RespondWithJSON for successful cases
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
