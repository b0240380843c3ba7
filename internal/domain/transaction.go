package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// Transaction is the immutable record of an executed (or failed) operation.
// Once written with a terminal status it is never updated.
type Transaction struct {
	ID            uuid.UUID
	IntentID      *uuid.UUID
	Operation     Operation
	FromAccountID *uuid.UUID
	ToAccountID   *uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Status        TransactionStatus
	Details       json.RawMessage
	ReceiptMode   ReceiptMode
	Timestamp     time.Time
}
