// backend/shared/go-dtos/error_dtos.go
package dtos

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationErrorDetail is a shared DTO for structured validation error responses.
type ValidationErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationDetails converts validator errors into ValidationErrorDetails.
// It returns nil for any other error.
func ValidationDetails(err error) []ValidationErrorDetail {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	details := make([]ValidationErrorDetail, 0, len(errs))
	for _, fe := range errs {
		var message string
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("Field '%s' is required", fe.Field())
		case "required_without":
			message = fmt.Sprintf("Field '%s' is required when '%s' is absent", fe.Field(), fe.Param())
		case "max":
			message = fmt.Sprintf("Field '%s' must not exceed %s in length", fe.Field(), fe.Param())
		case "base64":
			message = fmt.Sprintf("Field '%s' must be standard base64", fe.Field())
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		}
		details = append(details, ValidationErrorDetail{
			Field:   fe.Field(),
			Message: message,
			Code:    "validation_" + fe.Tag(),
		})
	}
	return details
}
