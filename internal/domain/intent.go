package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Operation string

const (
	OperationWithdraw       Operation = "WITHDRAW"
	OperationDeposit        Operation = "DEPOSIT"
	OperationCashDeposit    Operation = "CASH_DEPOSIT"
	OperationCheckDeposit   Operation = "CHECK_DEPOSIT"
	OperationTransfer       Operation = "TRANSFER"
	OperationPayment        Operation = "PAYMENT"
	OperationBillPayment    Operation = "BILL_PAYMENT"
	OperationBalanceInquiry Operation = "BALANCE_INQUIRY"
	OperationPinChange      Operation = "PIN_CHANGE"
)

func (o Operation) IsValid() bool {
	switch o {
	case OperationWithdraw, OperationDeposit, OperationCashDeposit,
		OperationCheckDeposit, OperationTransfer, OperationPayment,
		OperationBillPayment, OperationBalanceInquiry, OperationPinChange:
		return true
	}
	return false
}

type IntentStatus string

const (
	IntentStatusPendingDetails IntentStatus = "PENDING_DETAILS"
	IntentStatusReadyToExecute IntentStatus = "READY_TO_EXECUTE"
	IntentStatusCompleted      IntentStatus = "COMPLETED"
	IntentStatusCancelled      IntentStatus = "CANCELLED"
)

// TransactionIntent is a transaction request in the process of being fully
// specified. Context accumulates every answer supplied so far; MissingFields
// is recomputed from the operation's required-field policy after each update.
// Confirmed is a distinct flag and is never inferred from field completeness.
type TransactionIntent struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	Operation     Operation
	FromAccountID *uuid.UUID
	ToAccountID   *uuid.UUID
	Amount        *decimal.Decimal
	Currency      string
	ReceiptPref   ReceiptMode
	Status        IntentStatus
	MissingFields []string
	Context       map[string]string
	Confirmed     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terminal reports whether the intent may no longer be mutated.
func (i *TransactionIntent) Terminal() bool {
	return i.Status == IntentStatusCompleted || i.Status == IntentStatusCancelled
}
