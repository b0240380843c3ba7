package domain

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID                uuid.UUID
	Name              string
	Email             string
	PreferredLanguage string
	// PINHash never leaves the session manager boundary.
	PINHash        string
	PINChangeCount int
	CreatedAt      time.Time
}
