package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ridebroker/backend/internal/apperrors"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string `json:"error"`             // Error message
	Code    string `json:"code,omitempty"`    // Machine readable error code
	Details any    `json:"details,omitempty"` // Validation or domain details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if validationErr != nil && errors.As(validationErr, &fieldErrs) {
		details := make(map[string]string)
		for _, err := range fieldErrs {
			details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
		errorResp.Code = string(apperrors.CodeValidation)
		errorResp.Details = details
	}
	WriteJSON(w, statusCode, errorResp)
}

// SendAppError renders err using the metadata of its code. Untyped errors
// become a 500 without leaking their message.
func SendAppError(w http.ResponseWriter, err error) {
	typed := apperrors.As(err)
	if typed == nil {
		typed = apperrors.Wrap(apperrors.CodeInternal, err, "unexpected error")
	}
	meta := apperrors.MetadataFor(typed.Code())

	resp := ErrorResponse{Error: meta.PublicMessage, Code: string(typed.Code())}
	if meta.DetailsAllowed || typed.Code() == apperrors.CodeForbidden || typed.Code() == apperrors.CodeNotFound {
		resp.Error = typed.Message()
	}
	if meta.DetailsAllowed && typed.Details() != nil {
		resp.Details = typed.Details()
	}
	if meta.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	WriteJSON(w, meta.HTTPStatus, resp)
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
