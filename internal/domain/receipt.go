package domain

import (
	"time"

	"github.com/google/uuid"
)

type Receipt struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Mode          ReceiptMode
	Email         *string
	Content       string
	CreatedAt     time.Time
}
