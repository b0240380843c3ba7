package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/store/memory"
	"github.com/conversant-bank/atm-backend/internal/testutil"
)

func setupEngine(t *testing.T) (*Engine, *domain.Session, *domain.Account, *domain.Account) {
	t.Helper()
	st := memory.New()
	customer, card := testutil.SeedCustomer(t, st)
	checking := testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "2500.00")
	savings := testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeSavings, "4200.00")
	sess := testutil.SeedSession(t, st, customer, card)
	return NewEngine(st), sess, checking, savings
}

func TestCreate_TracksMissingFieldsPerOperation(t *testing.T) {
	engine, sess, checking, _ := setupEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		op      domain.Operation
		answers map[string]string
		missing []string
	}{
		{
			name:    "withdraw with nothing supplied",
			op:      domain.OperationWithdraw,
			answers: nil,
			missing: []string{FieldFromAccount, FieldAmount, FieldPinConfirmed},
		},
		{
			name: "withdraw with amount only",
			op:   domain.OperationWithdraw,
			answers: map[string]string{
				FieldAmount: "100.00",
			},
			missing: []string{FieldFromAccount, FieldPinConfirmed},
		},
		{
			name: "transfer with source only",
			op:   domain.OperationTransfer,
			answers: map[string]string{
				FieldFromAccount: checking.ID.String(),
			},
			missing: []string{FieldToAccount, FieldAmount},
		},
		{
			name:    "balance inquiry needs one account",
			op:      domain.OperationBalanceInquiry,
			answers: nil,
			missing: []string{FieldAccount},
		},
		{
			name:    "pin change needs new pin and confirmation",
			op:      domain.OperationPinChange,
			answers: nil,
			missing: []string{FieldNewPin, FieldPinConfirmed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, err := engine.Create(ctx, sess, tt.op, tt.answers)
			require.NoError(t, err)
			assert.Equal(t, domain.IntentStatusPendingDetails, i.Status)
			assert.Equal(t, tt.missing, i.MissingFields)
			assert.Len(t, ClarificationQuestions(i.MissingFields), len(tt.missing))
		})
	}
}

func TestCreate_RejectsUnknownOperation(t *testing.T) {
	engine, sess, _, _ := setupEngine(t)

	_, err := engine.Create(context.Background(), sess, domain.Operation("DANCE"), nil)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreate_RejectsBadAnswerValues(t *testing.T) {
	engine, sess, _, _ := setupEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		answers map[string]string
	}{
		{"non-uuid account", map[string]string{FieldFromAccount: "checking"}},
		{"negative amount", map[string]string{FieldAmount: "-5.00"}},
		{"zero amount", map[string]string{FieldAmount: "0"}},
		{"unparseable amount", map[string]string{FieldAmount: "lots"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Create(ctx, sess, domain.OperationWithdraw, tt.answers)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestUpdate_RetainsEarlierAnswers(t *testing.T) {
	engine, sess, checking, _ := setupEngine(t)
	ctx := context.Background()

	i, err := engine.Create(ctx, sess, domain.OperationWithdraw, map[string]string{
		FieldFromAccount: checking.ID.String(),
	})
	require.NoError(t, err)
	require.Equal(t, []string{FieldAmount, FieldPinConfirmed}, i.MissingFields)

	i, err = engine.Update(ctx, sess, i.ID, map[string]string{FieldAmount: "60.00"})
	require.NoError(t, err)
	assert.Equal(t, []string{FieldPinConfirmed}, i.MissingFields)
	require.NotNil(t, i.FromAccountID)
	assert.Equal(t, checking.ID, *i.FromAccountID)

	i, err = engine.Update(ctx, sess, i.ID, map[string]string{FieldPinConfirmed: "true"})
	require.NoError(t, err)
	assert.Empty(t, i.MissingFields)

	// Complete is not enough: execution waits for the explicit confirm.
	assert.Equal(t, domain.IntentStatusPendingDetails, i.Status)
	assert.False(t, i.Confirmed)
}

func TestUpdate_ConfirmFlagGatesReadiness(t *testing.T) {
	engine, sess, checking, _ := setupEngine(t)
	ctx := context.Background()

	i, err := engine.Create(ctx, sess, domain.OperationWithdraw, map[string]string{
		FieldFromAccount:  checking.ID.String(),
		FieldAmount:       "40.00",
		FieldPinConfirmed: "true",
	})
	require.NoError(t, err)
	require.Equal(t, domain.IntentStatusPendingDetails, i.Status)

	i, err = engine.Update(ctx, sess, i.ID, map[string]string{FieldConfirm: "true"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusReadyToExecute, i.Status)
	assert.True(t, i.Confirmed)
}

func TestUpdate_ConfirmBeforeCompleteStaysPending(t *testing.T) {
	engine, sess, _, _ := setupEngine(t)
	ctx := context.Background()

	i, err := engine.Create(ctx, sess, domain.OperationWithdraw, map[string]string{
		FieldConfirm: "true",
	})
	require.NoError(t, err)
	assert.True(t, i.Confirmed)
	assert.Equal(t, domain.IntentStatusPendingDetails, i.Status)
	assert.NotEmpty(t, i.MissingFields)
}

func TestUpdate_TerminalIntentRejected(t *testing.T) {
	engine, sess, checking, _ := setupEngine(t)
	ctx := context.Background()

	i, err := engine.Create(ctx, sess, domain.OperationWithdraw, map[string]string{
		FieldFromAccount: checking.ID.String(),
	})
	require.NoError(t, err)

	_, err = engine.Cancel(ctx, sess, i.ID)
	require.NoError(t, err)

	_, err = engine.Update(ctx, sess, i.ID, map[string]string{FieldAmount: "10.00"})
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = engine.Cancel(ctx, sess, i.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestUpdate_ForeignSessionSeesNotFound(t *testing.T) {
	engine, sess, checking, _ := setupEngine(t)
	ctx := context.Background()

	i, err := engine.Create(ctx, sess, domain.OperationWithdraw, map[string]string{
		FieldFromAccount: checking.ID.String(),
	})
	require.NoError(t, err)

	stranger := *sess
	stranger.ID = sess.CustomerID // any other uuid
	_, err = engine.Update(ctx, &stranger, i.ID, map[string]string{FieldAmount: "10.00"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReopen_ClearsOnlyConfirmation(t *testing.T) {
	engine, sess, checking, _ := setupEngine(t)
	ctx := context.Background()

	i, err := engine.Create(ctx, sess, domain.OperationWithdraw, map[string]string{
		FieldFromAccount:  checking.ID.String(),
		FieldAmount:       "40.00",
		FieldPinConfirmed: "true",
		FieldConfirm:      "true",
	})
	require.NoError(t, err)
	require.Equal(t, domain.IntentStatusReadyToExecute, i.Status)

	Reopen(i)

	assert.Equal(t, domain.IntentStatusPendingDetails, i.Status)
	assert.False(t, i.Confirmed)
	assert.Empty(t, i.MissingFields)
	assert.Equal(t, "40.00", i.Context[FieldAmount])
}
