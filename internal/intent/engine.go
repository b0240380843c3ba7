// Package intent builds and mutates transaction intents from structured or
// natural-language input, tracking which fields are still missing and which
// clarification question resolves each one.
package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/store"
)

// Field names used in intent context and clarification prompts.
const (
	FieldFromAccount  = "fromAccount"
	FieldToAccount    = "toAccount"
	FieldAccount      = "account"
	FieldAmount       = "amount"
	FieldPinConfirmed = "pinConfirmed"
	FieldPayee        = "payee"
	FieldNewPin       = "newPin"
	FieldConfirm      = "confirm"
)

// requiredFields is the per-operation slot policy. Order is the order in
// which clarification questions are asked.
var requiredFields = map[domain.Operation][]string{
	domain.OperationWithdraw:       {FieldFromAccount, FieldAmount, FieldPinConfirmed},
	domain.OperationDeposit:        {FieldToAccount, FieldAmount},
	domain.OperationCashDeposit:    {FieldToAccount, FieldAmount},
	domain.OperationCheckDeposit:   {FieldToAccount, FieldAmount},
	domain.OperationTransfer:       {FieldFromAccount, FieldToAccount, FieldAmount},
	domain.OperationPayment:        {FieldFromAccount, FieldToAccount, FieldAmount},
	domain.OperationBillPayment:    {FieldFromAccount, FieldPayee, FieldAmount},
	domain.OperationBalanceInquiry: {FieldAccount},
	domain.OperationPinChange:      {FieldNewPin, FieldPinConfirmed},
}

// questionTemplates maps each slot 1:1 onto a fixed clarification question.
var questionTemplates = map[string]string{
	FieldFromAccount:  "Which account should the funds come from?",
	FieldToAccount:    "Which account should the funds go to?",
	FieldAccount:      "Which account would you like to check?",
	FieldAmount:       "What amount should I use?",
	FieldPinConfirmed: "Please confirm your PIN to proceed.",
	FieldPayee:        "Which payee should be paid?",
	FieldNewPin:       "What should the new PIN be?",
}

func RequiredFields(op domain.Operation) []string {
	return append([]string(nil), requiredFields[op]...)
}

// ClarificationQuestions returns one question per missing field, in the same
// order as the missing fields themselves.
func ClarificationQuestions(missing []string) []string {
	out := make([]string, 0, len(missing))
	for _, f := range missing {
		if q, ok := questionTemplates[f]; ok {
			out = append(out, q)
		}
	}
	return out
}

type Engine struct {
	store store.Store
}

func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// Create opens a new intent for the session and applies the initial answers.
func (e *Engine) Create(ctx context.Context, sess *domain.Session, op domain.Operation, answers map[string]string) (*domain.TransactionIntent, error) {
	if !op.IsValid() {
		return nil, fmt.Errorf("Create: operation %q: %w", op, domain.ErrValidation)
	}

	now := time.Now().UTC()
	i := &domain.TransactionIntent{
		ID:        uuid.New(),
		SessionID: sess.ID,
		Operation: op,
		Currency:  "USD",
		Status:    domain.IntentStatusPendingDetails,
		Context:   make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.applyAnswers(i, answers); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	recompute(i)

	if err := e.store.CreateIntent(ctx, i); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	return i, nil
}

// Update merges answers into an existing intent. Previously supplied answers
// are retained when only a subset of fields arrives; updates after a terminal
// status are rejected.
func (e *Engine) Update(ctx context.Context, sess *domain.Session, intentID uuid.UUID, answers map[string]string) (*domain.TransactionIntent, error) {
	i, err := e.store.IntentByID(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	if i.SessionID != sess.ID {
		return nil, fmt.Errorf("Update: %w", domain.ErrNotFound)
	}
	if i.Terminal() {
		return nil, fmt.Errorf("Update: intent %s is %s: %w", i.ID, i.Status, domain.ErrInvalidState)
	}

	if err := e.applyAnswers(i, answers); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	recompute(i)
	i.UpdatedAt = time.Now().UTC()

	if err := e.store.UpdateIntent(ctx, i); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	return i, nil
}

// Cancel marks the intent terminal without touching balances.
func (e *Engine) Cancel(ctx context.Context, sess *domain.Session, intentID uuid.UUID) (*domain.TransactionIntent, error) {
	i, err := e.store.IntentByID(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	if i.SessionID != sess.ID {
		return nil, fmt.Errorf("Cancel: %w", domain.ErrNotFound)
	}
	if i.Terminal() {
		return nil, fmt.Errorf("Cancel: intent %s is %s: %w", i.ID, i.Status, domain.ErrInvalidState)
	}

	i.Status = domain.IntentStatusCancelled
	i.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateIntent(ctx, i); err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	return i, nil
}

func (e *Engine) applyAnswers(i *domain.TransactionIntent, answers map[string]string) error {
	for field, value := range answers {
		if value == "" {
			continue
		}
		switch field {
		case FieldFromAccount:
			id, err := uuid.Parse(value)
			if err != nil {
				return fmt.Errorf("field %s: %w", field, domain.ErrValidation)
			}
			i.FromAccountID = &id
		case FieldToAccount:
			id, err := uuid.Parse(value)
			if err != nil {
				return fmt.Errorf("field %s: %w", field, domain.ErrValidation)
			}
			i.ToAccountID = &id
		case FieldAccount:
			id, err := uuid.Parse(value)
			if err != nil {
				return fmt.Errorf("field %s: %w", field, domain.ErrValidation)
			}
			i.FromAccountID = &id
		case FieldAmount:
			amt, err := decimal.NewFromString(value)
			if err != nil || amt.IsNegative() || amt.IsZero() {
				return fmt.Errorf("field %s: %w", field, domain.ErrValidation)
			}
			i.Amount = &amt
		case FieldConfirm:
			if value == "true" {
				i.Confirmed = true
			}
		case "currency":
			i.Currency = value
		case "receiptMode":
			mode := domain.ReceiptMode(value)
			if !mode.IsValid() {
				return fmt.Errorf("field %s: %w", field, domain.ErrValidation)
			}
			i.ReceiptPref = mode
		}
		i.Context[field] = value
	}
	return nil
}

// recompute derives missing fields and status deterministically from the
// accumulated context. READY_TO_EXECUTE additionally requires the explicit
// confirm flag; completeness alone never triggers execution.
func recompute(i *domain.TransactionIntent) {
	required := requiredFields[i.Operation]
	missing := make([]string, 0, len(required))
	for _, f := range required {
		if i.Context[f] == "" {
			missing = append(missing, f)
		}
	}
	i.MissingFields = missing

	if len(missing) == 0 && i.Confirmed {
		i.Status = domain.IntentStatusReadyToExecute
	} else {
		i.Status = domain.IntentStatusPendingDetails
	}
}

// Reopen puts an executed-but-interrupted intent back into slot filling.
// Captured answers survive; only the confirmation flag is cleared.
func Reopen(i *domain.TransactionIntent) {
	i.Confirmed = false
	delete(i.Context, FieldConfirm)
	recompute(i)
	i.UpdatedAt = time.Now().UTC()
}
