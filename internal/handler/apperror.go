package handler

import (
	"net/http"

	"github.com/conversant-bank/atm-backend/internal/domain"
)

// AppError pairs an HTTP mapping with the numeric response code the ATM host
// protocol expects in the body.
type AppError struct {
	Status       int
	Code         string
	Message      string
	ResponseCode domain.ResponseCode
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required", domain.CodeIssuerUnavailable}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired", domain.CodeIssuerUnavailable}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", domain.CodeIssuerUnavailable}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", domain.CodeIssuerUnavailable}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found", domain.CodeIssuerUnavailable}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", domain.CodeIssuerUnavailable}

	ErrAuthFailed        = &AppError{http.StatusUnauthorized, "AUTH_FAILED", "Card could not be authenticated", domain.CodeIssuerUnavailable}
	ErrSequence          = &AppError{http.StatusConflict, "SEQUENCE_ERROR", "Request received out of session order", domain.CodeIssuerUnavailable}
	ErrSessionExpired    = &AppError{http.StatusUnauthorized, "SESSION_EXPIRED", "Session has expired", domain.CodeIssuerUnavailable}
	ErrSessionLocked     = &AppError{http.StatusForbidden, "SESSION_LOCKED", "Session is locked", domain.CodePinTriesExceeded}
	ErrIncorrectPin      = &AppError{http.StatusUnauthorized, "INCORRECT_PIN", "Incorrect PIN", domain.CodeIncorrectPin}
	ErrPinTriesExceeded  = &AppError{http.StatusForbidden, "PIN_TRIES_EXCEEDED", "PIN tries exceeded, session locked", domain.CodePinTriesExceeded}
	ErrBalanceError      = &AppError{http.StatusUnprocessableEntity, "BALANCE_ERROR", "Insufficient funds", domain.CodeInsufficientFunds}
	ErrLimitExceeded     = &AppError{http.StatusUnprocessableEntity, "LIMIT_EXCEEDED", "Daily limit exceeded", domain.CodeInsufficientFunds}
	ErrAccountInactive   = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_INACTIVE", "Account is not active", domain.CodeIssuerUnavailable}
	ErrInvalidState      = &AppError{http.StatusConflict, "INVALID_STATE", "Operation not valid for current state", domain.CodeIssuerUnavailable}
	ErrIntentNotReady    = &AppError{http.StatusConflict, "INTENT_NOT_READY", "Intent is missing fields or confirmation", domain.CodeIssuerUnavailable}
	ErrConcurrentRequest = &AppError{http.StatusConflict, "CONCURRENT_REQUEST", "Another request is in flight for this session", domain.CodeIssuerUnavailable}
	ErrLLMUnavailable    = &AppError{http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "Assistant backend unavailable", domain.CodeIssuerUnavailable}
	ErrToolTimeout       = &AppError{http.StatusGatewayTimeout, "TOOL_TIMEOUT", "Assistant tool call timed out", domain.CodeIssuerUnavailable}
)
