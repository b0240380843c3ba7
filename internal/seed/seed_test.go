package seed

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/store/memory"
	"github.com/conversant-bank/atm-backend/internal/testutil"
)

func TestLoad_PopulatesDemoCustomers(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	require.NoError(t, Load(ctx, st, testutil.DefaultLimits()))

	card, err := st.CardByPAN(ctx, "4111111111111111")
	require.NoError(t, err)
	assert.Equal(t, "****1111", card.MaskedPAN)
	assert.Equal(t, domain.CardStatusActive, card.Status)

	accounts, err := st.AccountsByCustomer(ctx, card.CustomerID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	byType := map[domain.AccountType]domain.Account{}
	for _, a := range accounts {
		byType[a.Type] = a
	}
	checking := byType[domain.AccountTypeChecking]
	assert.Equal(t, "1234567890", checking.Number)
	assert.Equal(t, "******7890", checking.MaskedNumber)
	assert.True(t, checking.Balance.Equal(decimal.RequireFromString("2500.00")))
	assert.True(t, checking.Limits.Withdrawal.Equal(decimal.RequireFromString("500.00")))
	assert.True(t, byType[domain.AccountTypeSavings].Balance.Equal(decimal.RequireFromString("4200.00")))

	// Each customer ships with a short statement.
	txns, err := st.TransactionsByAccount(ctx, checking.ID, 10)
	require.NoError(t, err)
	assert.Len(t, txns, 4)

	mariaCard, err := st.CardByPAN(ctx, "4222222222222222")
	require.NoError(t, err)
	maria, err := st.CustomerByID(ctx, mariaCard.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "es", maria.PreferredLanguage)
}

func TestLoad_SecondRunIsNoOp(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	require.NoError(t, Load(ctx, st, testutil.DefaultLimits()))

	card, err := st.CardByPAN(ctx, "4111111111111111")
	require.NoError(t, err)
	before, err := st.AccountsByCustomer(ctx, card.CustomerID)
	require.NoError(t, err)

	require.NoError(t, Load(ctx, st, testutil.DefaultLimits()))

	after, err := st.AccountsByCustomer(ctx, card.CustomerID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}
