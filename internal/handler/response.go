package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/conversant-bank/atm-backend/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	ResponseCode string `json:"response_code"`
	Details      any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:         appErr.Code,
			Message:      appErr.Message,
			ResponseCode: string(appErr.ResponseCode),
			Details:      details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps the internal error taxonomy onto the HTTP surface.
// Everything unmatched is deliberately opaque to the caller and logged here.
func RespondDomainError(w http.ResponseWriter, err error) {
	var appErr *AppError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrAuthFailed):
		appErr = ErrAuthFailed
	case errors.Is(err, domain.ErrSequence):
		appErr = ErrSequence
	case errors.Is(err, domain.ErrSessionExpired):
		appErr = ErrSessionExpired
	case errors.Is(err, domain.ErrSessionLocked):
		appErr = ErrSessionLocked
	case errors.Is(err, domain.ErrPinMismatch):
		appErr = ErrIncorrectPin
	case errors.Is(err, domain.ErrPinLocked):
		appErr = ErrPinTriesExceeded
	case errors.Is(err, domain.ErrValidation):
		appErr = ErrValidationFailed
	case errors.Is(err, domain.ErrInsufficientFunds):
		appErr = ErrBalanceError
	case errors.Is(err, domain.ErrLimitExceeded):
		appErr = ErrLimitExceeded
	case errors.Is(err, domain.ErrAccountInactive):
		appErr = ErrAccountInactive
	case errors.Is(err, domain.ErrIntentNotReady):
		appErr = ErrIntentNotReady
	case errors.Is(err, domain.ErrInvalidState):
		appErr = ErrInvalidState
	case errors.Is(err, domain.ErrConcurrentRequest):
		appErr = ErrConcurrentRequest
	case errors.Is(err, domain.ErrLLMUnavailable):
		appErr = ErrLLMUnavailable
	case errors.Is(err, domain.ErrToolTimeout):
		appErr = ErrToolTimeout
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}
