package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendErrorResponse(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Something broke", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "Something broke", resp.Error)
		assert.Empty(t, resp.Details)
	})

	t.Run("validation errors include per-field details", func(t *testing.T) {
		helper := NewValidationHelper()
		err := helper.ValidateStruct(&LoginRequest{Email: "not-an-email", Password: "123"})
		assert.Error(t, err)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)

		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Contains(t, resp.Details, "Email")
		assert.Contains(t, resp.Details, "Password")
	})
}

func TestSendServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", ErrNotFound, http.StatusNotFound},
		{"already reviewed", ErrInvalidState, http.StatusConflict},
		{"write conflict", ErrTransactionConflict, http.StatusConflict},
		{"upload failure", ErrUploadFailure, http.StatusBadGateway},
		{"validation", fmt.Errorf("%w: amount must be positive", ErrValidation), http.StatusBadRequest},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			SendServiceError(w, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
