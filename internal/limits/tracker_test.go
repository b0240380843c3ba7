package limits

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/store"
	"github.com/conversant-bank/atm-backend/internal/store/memory"
	"github.com/conversant-bank/atm-backend/internal/testutil"
)

func consume(t *testing.T, st store.Store, tr *Tracker, acct *domain.Account, category domain.LimitCategory, amount string) error {
	t.Helper()
	return st.Atomic(context.Background(), func(tx store.Tx) error {
		return tr.Consume(context.Background(), tx, acct, category, decimal.RequireFromString(amount))
	})
}

func TestConsume_EnforcesDailyCap(t *testing.T) {
	st := memory.New()
	customer, _ := testutil.SeedCustomer(t, st)
	acct := testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "9000.00")
	tr := NewTracker(st)

	// 500.00 withdrawal cap from the default limits.
	require.NoError(t, consume(t, st, tr, acct, domain.LimitCategoryWithdrawal, "200.00"))
	require.NoError(t, consume(t, st, tr, acct, domain.LimitCategoryWithdrawal, "300.00"))

	err := consume(t, st, tr, acct, domain.LimitCategoryWithdrawal, "0.01")
	require.ErrorIs(t, err, domain.ErrLimitExceeded)

	// Other categories keep their own quota.
	require.NoError(t, consume(t, st, tr, acct, domain.LimitCategoryTransfer, "1000.00"))
}

func TestConsume_RejectedSpendLeavesRecordUntouched(t *testing.T) {
	st := memory.New()
	customer, _ := testutil.SeedCustomer(t, st)
	acct := testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "9000.00")
	tr := NewTracker(st)

	require.NoError(t, consume(t, st, tr, acct, domain.LimitCategoryWithdrawal, "400.00"))
	require.ErrorIs(t, consume(t, st, tr, acct, domain.LimitCategoryWithdrawal, "200.00"), domain.ErrLimitExceeded)

	rec, err := st.LimitRecord(context.Background(), acct.ID, domain.LimitDate(time.Now()))
	require.NoError(t, err)
	assert.True(t, rec.TotalWithdrawals.Equal(decimal.RequireFromString("400.00")))
	assert.Equal(t, 1, rec.WithdrawalCount)
}

func TestRemaining_FloorsAtZero(t *testing.T) {
	st := memory.New()
	customer, _ := testutil.SeedCustomer(t, st)
	acct := testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "9000.00")
	tr := NewTracker(st)
	ctx := context.Background()

	remaining, err := tr.Remaining(ctx, acct, domain.LimitCategoryWithdrawal)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(decimal.RequireFromString("500.00")))

	require.NoError(t, consume(t, st, tr, acct, domain.LimitCategoryWithdrawal, "500.00"))

	remaining, err = tr.Remaining(ctx, acct, domain.LimitCategoryWithdrawal)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())
}

func TestConsume_QuotaResetsAcrossDays(t *testing.T) {
	st := memory.New()
	customer, _ := testutil.SeedCustomer(t, st)
	acct := testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "9000.00")

	day := time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	clock := func() time.Time { return day }
	tr := NewTrackerAt(st, func() time.Time { return clock() })

	require.NoError(t, consume(t, st, tr, acct, domain.LimitCategoryWithdrawal, "500.00"))
	require.ErrorIs(t, consume(t, st, tr, acct, domain.LimitCategoryWithdrawal, "100.00"), domain.ErrLimitExceeded)

	// Past midnight the cap is fresh.
	next := day.Add(20 * time.Minute)
	clock = func() time.Time { return next }
	require.NoError(t, consume(t, st, tr, acct, domain.LimitCategoryWithdrawal, "500.00"))
}
