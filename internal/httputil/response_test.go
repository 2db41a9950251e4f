package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/synk/synk-server-go/internal/errors"
)

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code   apperrors.ErrorCode
		status int
	}{
		{apperrors.ErrCodeAlreadyPaired, http.StatusBadRequest},
		{apperrors.ErrCodeNotPaired, http.StatusBadRequest},
		{apperrors.ErrCodeInvalidOrExpiredCode, http.StatusBadRequest},
		{apperrors.ErrCodeSelfRedemption, http.StatusBadRequest},
		{apperrors.ErrCodeValidation, http.StatusBadRequest},
		{apperrors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{apperrors.ErrCodeNotFound, http.StatusNotFound},
		{apperrors.ErrCodeAlreadyExists, http.StatusConflict},
		{apperrors.ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{apperrors.ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{apperrors.ErrCodeDatabase, http.StatusInternalServerError},
		{apperrors.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.status, StatusFromCode(tc.code))
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("writes app error envelope", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.SelfRedemption())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, "SELF_REDEMPTION", body["error_code"])
		assert.Equal(t, "You cannot use your own coupling code", body["message"])
		assert.NotContains(t, body, "details")
	})

	t.Run("hides unknown errors behind internal error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("pq: connection reset"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "pq:")
		assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	})

	t.Run("includes details when present", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.RateLimitExceeded(12))

		var body struct {
			Details map[string]int `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 12, body.Details["retry_after"])
	})
}
