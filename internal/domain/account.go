package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// DailyLimits holds the per-category caps applied per calendar day.
type DailyLimits struct {
	Withdrawal decimal.Decimal
	Deposit    decimal.Decimal
	Transfer   decimal.Decimal
}

func (l DailyLimits) For(category LimitCategory) decimal.Decimal {
	switch category {
	case LimitCategoryWithdrawal:
		return l.Withdrawal
	case LimitCategoryDeposit:
		return l.Deposit
	case LimitCategoryTransfer:
		return l.Transfer
	default:
		return decimal.Zero
	}
}

type Account struct {
	ID           uuid.UUID
	CustomerID   uuid.UUID
	Type         AccountType
	Currency     string
	Balance      decimal.Decimal
	Number       string
	MaskedNumber string
	Name         string
	Status       AccountStatus
	Limits       DailyLimits
	CreatedAt    time.Time
}

// MaskAccountNumber keeps only the last four digits of an account number.
func MaskAccountNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return "******" + number[len(number)-4:]
}
