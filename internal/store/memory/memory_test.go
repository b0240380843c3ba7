package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/store"
	"github.com/conversant-bank/atm-backend/internal/testutil"
)

func TestAtomic_RollbackDiscardsStagedWrites(t *testing.T) {
	st := New()
	ctx := context.Background()
	customer, _ := testutil.SeedCustomer(t, st)
	acct := testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "1000.00")

	boom := errors.New("boom")
	err := st.Atomic(ctx, func(tx store.Tx) error {
		locked, err := tx.AccountForUpdate(ctx, acct.ID)
		require.NoError(t, err)
		require.NoError(t, tx.UpdateAccountBalance(ctx, locked.ID, decimal.Zero))

		rec, err := tx.LimitRecordForUpdate(ctx, acct.ID, "2026-03-01")
		require.NoError(t, err)
		rec.Add(domain.LimitCategoryWithdrawal, decimal.RequireFromString("100.00"))
		require.NoError(t, tx.SaveLimitRecord(ctx, rec))

		require.NoError(t, tx.CreateTransaction(ctx, &domain.Transaction{
			ID:            uuid.New(),
			Operation:     domain.OperationWithdraw,
			FromAccountID: &acct.ID,
			Amount:        decimal.RequireFromString("100.00"),
			Currency:      "USD",
			Status:        domain.TransactionStatusCompleted,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := st.AccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("1000.00")))

	rec, err := st.LimitRecord(ctx, acct.ID, "2026-03-01")
	require.NoError(t, err)
	assert.True(t, rec.TotalWithdrawals.IsZero())

	txns, err := st.TransactionsByAccount(ctx, acct.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestAtomic_CommitAppliesAllWrites(t *testing.T) {
	st := New()
	ctx := context.Background()
	customer, _ := testutil.SeedCustomer(t, st)
	acct := testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "1000.00")

	err := st.Atomic(ctx, func(tx store.Tx) error {
		if err := tx.UpdateAccountBalance(ctx, acct.ID, decimal.RequireFromString("900.00")); err != nil {
			return err
		}
		rec, err := tx.LimitRecordForUpdate(ctx, acct.ID, "2026-03-01")
		if err != nil {
			return err
		}
		rec.Add(domain.LimitCategoryWithdrawal, decimal.RequireFromString("100.00"))
		return tx.SaveLimitRecord(ctx, rec)
	})
	require.NoError(t, err)

	got, err := st.AccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("900.00")))

	rec, err := st.LimitRecord(ctx, acct.ID, "2026-03-01")
	require.NoError(t, err)
	assert.True(t, rec.TotalWithdrawals.Equal(decimal.RequireFromString("100.00")))
}

func TestReadsReturnCopies(t *testing.T) {
	st := New()
	ctx := context.Background()
	customer, _ := testutil.SeedCustomer(t, st)
	acct := testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "1000.00")

	first, err := st.AccountByID(ctx, acct.ID)
	require.NoError(t, err)
	first.Balance = decimal.Zero

	second, err := st.AccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, second.Balance.Equal(decimal.RequireFromString("1000.00")))
}

func TestTransactionsByAccount_NewestFirstWithLimit(t *testing.T) {
	st := New()
	ctx := context.Background()
	customer, _ := testutil.SeedCustomer(t, st)
	acct := testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "1000.00")

	amounts := []string{"10.00", "20.00", "30.00"}
	for _, a := range amounts {
		require.NoError(t, st.CreateTransaction(ctx, &domain.Transaction{
			ID:            uuid.New(),
			Operation:     domain.OperationWithdraw,
			FromAccountID: &acct.ID,
			Amount:        decimal.RequireFromString(a),
			Currency:      "USD",
			Status:        domain.TransactionStatusCompleted,
		}))
	}

	txns, err := st.TransactionsByAccount(ctx, acct.ID, 2)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("30.00")))
	assert.True(t, txns[1].Amount.Equal(decimal.RequireFromString("20.00")))
}

func TestRecentMessages_WindowKeepsNewest(t *testing.T) {
	st := New()
	ctx := context.Background()
	customer, card := testutil.SeedCustomer(t, st)
	sess := testutil.SeedSession(t, st, customer, card)

	for _, content := range []string{"one", "two", "three", "four"} {
		require.NoError(t, st.AppendMessage(ctx, &domain.ConversationMessage{
			ID:        uuid.New(),
			SessionID: sess.ID,
			Sender:    domain.SenderUser,
			Content:   content,
		}))
	}

	msgs, err := st.RecentMessages(ctx, sess.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "three", msgs[0].Content)
	assert.Equal(t, "four", msgs[1].Content)
}
