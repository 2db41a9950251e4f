package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/synk/synk-server-go/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debug().Err(err).Msg("failed to encode response body")
	}
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Status    string              `json:"status"`
	ErrorCode apperrors.ErrorCode `json:"error_code"`
	Message   string              `json:"message"`
	Details   any                 `json:"details,omitempty"`
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		log.Error().Err(err).Msg("unhandled error")
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	WriteErrorWithStatus(w, StatusFromCode(appErr.Code), appErr)
}

// WriteErrorWithStatus writes an error with a specific HTTP status code
func WriteErrorWithStatus(w http.ResponseWriter, status int, err *apperrors.AppError) {
	WriteJSON(w, status, ErrorResponse{
		Status:    "error",
		ErrorCode: err.Code,
		Message:   err.Message,
		Details:   err.Details,
	})
}

// StatusFromCode maps ErrorCode to HTTP status code
func StatusFromCode(code apperrors.ErrorCode) int {
	switch code {
	// 400 Bad Request
	case apperrors.ErrCodeValidation,
		apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeMissingRequired,
		apperrors.ErrCodeAlreadyPaired,
		apperrors.ErrCodeNotPaired,
		apperrors.ErrCodeInvalidOrExpiredCode,
		apperrors.ErrCodeSelfRedemption:
		return http.StatusBadRequest

	// 401 Unauthorized
	case apperrors.ErrCodeUnauthorized,
		apperrors.ErrCodeInvalidToken,
		apperrors.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized

	// 404 Not Found
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case apperrors.ErrCodeAlreadyExists:
		return http.StatusConflict

	// 413 Request Entity Too Large
	case apperrors.ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge

	// 429 Too Many Requests
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}
