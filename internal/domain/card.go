package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
	CardStatusLost    CardStatus = "LOST"
	CardStatusStolen  CardStatus = "STOLEN"
)

type Card struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	PAN        string
	MaskedPAN  string
	Status     CardStatus
	Expiry     string // MMYY
	CreatedAt  time.Time
}

// Usable reports whether the card may open a session.
func (c *Card) Usable() bool {
	return c.Status == CardStatusActive
}

// MaskPAN keeps only the last four digits of a card number.
func MaskPAN(pan string) string {
	if len(pan) <= 4 {
		return pan
	}
	return "****" + pan[len(pan)-4:]
}

// PANFromTrack2 extracts the card number from magnetic-stripe track data.
// Track2 is "<PAN>=<expiry and discretionary data>"; a bare PAN is accepted
// as-is for manual entry.
func PANFromTrack2(track2 string) string {
	if i := strings.IndexAny(track2, "=D"); i > 0 {
		return track2[:i]
	}
	return track2
}
