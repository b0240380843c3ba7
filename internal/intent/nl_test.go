package intent

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversant-bank/atm-backend/internal/domain"
)

func twoAccounts() (checking, savings domain.Account, all []domain.Account) {
	checking = domain.Account{ID: uuid.New(), Type: domain.AccountTypeChecking, Balance: decimal.Zero}
	savings = domain.Account{ID: uuid.New(), Type: domain.AccountTypeSavings, Balance: decimal.Zero}
	return checking, savings, []domain.Account{checking, savings}
}

func TestParseUtterance(t *testing.T) {
	checking, savings, accounts := twoAccounts()

	tests := []struct {
		name    string
		text    string
		op      domain.Operation
		answers map[string]string
	}{
		{
			name: "withdrawal with amount defaults to checking",
			text: "I want to withdraw $100 please",
			op:   domain.OperationWithdraw,
			answers: map[string]string{
				FieldAmount:      "100",
				FieldFromAccount: checking.ID.String(),
			},
		},
		{
			name: "withdrawal naming savings",
			text: "withdraw 50.25 from my savings",
			op:   domain.OperationWithdraw,
			answers: map[string]string{
				FieldAmount:      "50.25",
				FieldFromAccount: savings.ID.String(),
			},
		},
		{
			name: "transfer uses checking to savings by default",
			text: "transfer $200",
			op:   domain.OperationTransfer,
			answers: map[string]string{
				FieldAmount:      "200",
				FieldFromAccount: checking.ID.String(),
				FieldToAccount:   savings.ID.String(),
			},
		},
		{
			name: "transfer naming only savings reverses direction",
			text: "transfer 75 out of savings",
			op:   domain.OperationTransfer,
			answers: map[string]string{
				FieldAmount:      "75",
				FieldFromAccount: savings.ID.String(),
				FieldToAccount:   checking.ID.String(),
			},
		},
		{
			name: "deposit naming savings",
			text: "deposit $40 into savings",
			op:   domain.OperationDeposit,
			answers: map[string]string{
				FieldAmount:    "40",
				FieldToAccount: savings.ID.String(),
			},
		},
		{
			name: "balance question picks named account and drops numbers",
			text: "how much is in my checking account",
			op:   domain.OperationBalanceInquiry,
			answers: map[string]string{
				FieldAccount: checking.ID.String(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, answers, ok := ParseUtterance(tt.text, accounts)
			require.True(t, ok)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.answers, answers)
		})
	}
}

func TestParseUtterance_UnrecognizedText(t *testing.T) {
	_, _, accounts := twoAccounts()

	op, answers, ok := ParseUtterance("tell me a joke", accounts)
	assert.False(t, ok)
	assert.Empty(t, op)
	assert.Nil(t, answers)
}

func TestParseUtterance_BalanceWithSingleAccount(t *testing.T) {
	only := domain.Account{ID: uuid.New(), Type: domain.AccountTypeSavings}

	op, answers, ok := ParseUtterance("what's my balance?", []domain.Account{only})
	require.True(t, ok)
	assert.Equal(t, domain.OperationBalanceInquiry, op)
	assert.Equal(t, only.ID.String(), answers[FieldAccount])
}
