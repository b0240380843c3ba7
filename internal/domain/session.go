package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "ACTIVE"
	SessionStatusLocked  SessionStatus = "LOCKED"
	SessionStatusExpired SessionStatus = "EXPIRED"
)

// Phase is the position in the strictly ordered session protocol.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseLoginOK
	PhasePreferencesSet
	PhasePinValidated
	PhaseOverviewFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "UNAUTHENTICATED"
	case PhaseLoginOK:
		return "LOGIN_OK"
	case PhasePreferencesSet:
		return "PREFERENCES_SET"
	case PhasePinValidated:
		return "PIN_VALIDATED"
	case PhaseOverviewFinalized:
		return "OVERVIEW_FINALIZED"
	default:
		return "UNKNOWN"
	}
}

type ReceiptMode string

const (
	ReceiptModePrint ReceiptMode = "PRINT"
	ReceiptModeEmail ReceiptMode = "EMAIL"
	ReceiptModeNone  ReceiptMode = "NONE"
)

func (m ReceiptMode) IsValid() bool {
	switch m {
	case ReceiptModePrint, ReceiptModeEmail, ReceiptModeNone:
		return true
	}
	return false
}

type Preferences struct {
	Language    string
	Email       string
	ReceiptMode ReceiptMode
	FastCash    bool
}

// PhaseOutcome is the stored result of a completed phase call. Re-issuing the
// same phase with an identical request hash replays the stored response
// without re-executing side effects.
type PhaseOutcome struct {
	RequestHash string
	Response    json.RawMessage
}

type Session struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	CardID      uuid.UUID
	MaskedPAN   string
	PinAttempts int
	Status      SessionStatus
	Phase       Phase
	Preferences Preferences
	Outcomes    map[Phase]PhaseOutcome
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// ExpiredAt reports whether the session's wall-clock expiry has passed.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
