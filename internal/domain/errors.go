package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAuthFailed        = errors.New("card cannot be used")
	ErrSequence          = errors.New("phase called out of order")
	ErrSessionExpired    = errors.New("session expired")
	ErrSessionLocked     = errors.New("session locked")
	ErrPinMismatch       = errors.New("incorrect pin")
	ErrPinLocked         = errors.New("pin tries exceeded")
	ErrValidation        = errors.New("invalid request fields")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLimitExceeded     = errors.New("daily limit exceeded")
	ErrAccountInactive   = errors.New("account not active")
	ErrInvalidState      = errors.New("operation not valid for current state")
	ErrIntentNotReady    = errors.New("intent not ready to execute")
	ErrConcurrentRequest = errors.New("another request is in flight for this session")
	ErrLLMUnavailable    = errors.New("llm backend unavailable")
	ErrToolTimeout       = errors.New("tool call timed out")
)
