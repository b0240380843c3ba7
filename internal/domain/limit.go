package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LimitCategory string

const (
	LimitCategoryWithdrawal LimitCategory = "withdrawal"
	LimitCategoryDeposit    LimitCategory = "deposit"
	LimitCategoryTransfer   LimitCategory = "transfer"
)

// CategoryForOperation maps an operation onto the daily-limit category it
// consumes. Operations that move no money (balance inquiry, PIN change)
// have no category.
func CategoryForOperation(op Operation) (LimitCategory, bool) {
	switch op {
	case OperationWithdraw:
		return LimitCategoryWithdrawal, true
	case OperationDeposit, OperationCashDeposit, OperationCheckDeposit:
		return LimitCategoryDeposit, true
	case OperationTransfer, OperationPayment, OperationBillPayment:
		return LimitCategoryTransfer, true
	default:
		return "", false
	}
}

// LimitDate is the calendar-day key for daily limit records.
const LimitDateLayout = "2006-01-02"

func LimitDate(t time.Time) string {
	return t.UTC().Format(LimitDateLayout)
}

// DailyLimitRecord accumulates the committed totals for one account on one
// calendar day. It is maintained incrementally by the transaction executor,
// never recomputed from the transaction log.
type DailyLimitRecord struct {
	AccountID        uuid.UUID
	Date             string
	TotalWithdrawals decimal.Decimal
	TotalDeposits    decimal.Decimal
	TotalTransfers   decimal.Decimal
	WithdrawalCount  int
	DepositCount     int
	TransferCount    int
	UpdatedAt        time.Time
}

func NewDailyLimitRecord(accountID uuid.UUID, date string) *DailyLimitRecord {
	return &DailyLimitRecord{
		AccountID:        accountID,
		Date:             date,
		TotalWithdrawals: decimal.Zero,
		TotalDeposits:    decimal.Zero,
		TotalTransfers:   decimal.Zero,
	}
}

func (r *DailyLimitRecord) Total(category LimitCategory) decimal.Decimal {
	switch category {
	case LimitCategoryWithdrawal:
		return r.TotalWithdrawals
	case LimitCategoryDeposit:
		return r.TotalDeposits
	case LimitCategoryTransfer:
		return r.TotalTransfers
	default:
		return decimal.Zero
	}
}

func (r *DailyLimitRecord) Add(category LimitCategory, amount decimal.Decimal) {
	switch category {
	case LimitCategoryWithdrawal:
		r.TotalWithdrawals = r.TotalWithdrawals.Add(amount)
		r.WithdrawalCount++
	case LimitCategoryDeposit:
		r.TotalDeposits = r.TotalDeposits.Add(amount)
		r.DepositCount++
	case LimitCategoryTransfer:
		r.TotalTransfers = r.TotalTransfers.Add(amount)
		r.TransferCount++
	}
}
