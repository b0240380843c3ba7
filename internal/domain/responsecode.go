package domain

import "errors"

// ResponseCode is the closed numeric set surfaced at the host boundary.
type ResponseCode string

const (
	CodeApproved          ResponseCode = "00"
	CodeInsufficientFunds ResponseCode = "51"
	CodeIncorrectPin      ResponseCode = "55"
	CodePinTriesExceeded  ResponseCode = "75"
	CodeIssuerUnavailable ResponseCode = "91"
)

// CodeForError maps any internal error onto the boundary response-code set.
// The internal taxonomy is preserved separately for logging.
func CodeForError(err error) ResponseCode {
	switch {
	case err == nil:
		return CodeApproved
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrLimitExceeded):
		return CodeInsufficientFunds
	case errors.Is(err, ErrPinMismatch):
		return CodeIncorrectPin
	case errors.Is(err, ErrPinLocked), errors.Is(err, ErrSessionLocked):
		return CodePinTriesExceeded
	default:
		return CodeIssuerUnavailable
	}
}
