package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/models"
)

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid offer input", func(t *testing.T) {
		valid := CreateOfferInput{
			TotalAmount: 5000,
			TTLSeconds:  600,
			Pickup:      "Airport",
			Dropoff:     "Downtown",
		}

		err := vh.ValidateStruct(&valid)
		assert.NoError(t, err)
	})

	t.Run("invalid offer input - missing required fields", func(t *testing.T) {
		invalid := CreateOfferInput{
			TotalAmount: -5,
		}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 4) // TotalAmount, TTLSeconds, Pickup, Dropoff
	})

	t.Run("payment link needs a url", func(t *testing.T) {
		invalid := models.PaymentLinkPayload{URL: "not a url", Amount: 100}

		err := vh.ValidateStruct(invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "URL", validationErrors[0].Field())
		assert.Equal(t, "url", validationErrors[0].Tag())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		vh := NewValidationHelper()
		validationErr := vh.ValidateStruct(&CreateOfferInput{})
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response struct {
			Error   string            `json:"error"`
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.Equal(t, "VALIDATION_ERROR", response.Code)
		assert.Contains(t, response.Details, "Pickup")
		assert.Contains(t, response.Details, "TotalAmount")
	})

	t.Run("non validator error is ignored", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, errors.New("boom"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Nil(t, response.Details)
	})
}

func TestSendAppError(t *testing.T) {
	decode := func(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
		t.Helper()
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	t.Run("insufficient funds carries shortfall", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendAppError(w, apperrors.InsufficientFunds(1000, 500))

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		body := decode(t, w)
		assert.Equal(t, "INSUFFICIENT_FUNDS", body["code"])
		details := body["details"].(map[string]any)
		assert.Equal(t, float64(1000), details["required"])
		assert.Equal(t, float64(500), details["available"])
		assert.Equal(t, float64(500), details["shortfall"])
	})

	t.Run("already taken is a conflict", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendAppError(w, apperrors.New(apperrors.CodeAlreadyTaken, "ride already taken"))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "ALREADY_TAKEN", decode(t, w)["code"])
	})

	t.Run("expired is gone", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendAppError(w, apperrors.New(apperrors.CodeExpired, "ride offer expired"))

		assert.Equal(t, http.StatusGone, w.Code)
	})

	t.Run("transient failures ask for a retry", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendAppError(w, apperrors.Wrap(apperrors.CodeTransient, errors.New("pq: deadlock detected"), "accept offer"))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
		body := decode(t, w)
		assert.NotContains(t, body["error"], "deadlock")
	})

	t.Run("untyped errors are hidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendAppError(w, errors.New("secret connection string"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal server error", decode(t, w)["error"])
	})
}

func TestNewValidationHelper(t *testing.T) {
	vh := NewValidationHelper()
	assert.NotNil(t, vh)
	assert.NotNil(t, vh.validator)
}
