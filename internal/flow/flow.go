// Package flow renders an intent's execution as an ordered list of UI steps
// and lets an in-flight flow be interrupted without losing captured answers.
package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/intent"
	"github.com/conversant-bank/atm-backend/internal/store"
)

// Build produces the deterministic step sequence for an operation with its
// fields resolved. Terminal success/error steps are appended when execution
// settles, not here.
func Build(i *domain.TransactionIntent) []domain.FlowStep {
	steps := []domain.FlowStep{
		{ID: "select_operation", Label: "Select " + string(i.Operation), Type: domain.StepTypeSelect},
	}

	switch i.Operation {
	case domain.OperationWithdraw, domain.OperationBillPayment:
		steps = append(steps, domain.FlowStep{ID: "select_source_account", Label: "Select source account", Type: domain.StepTypeSelect})
	case domain.OperationDeposit, domain.OperationCashDeposit, domain.OperationCheckDeposit:
		steps = append(steps, domain.FlowStep{ID: "select_destination_account", Label: "Select destination account", Type: domain.StepTypeSelect})
	case domain.OperationTransfer, domain.OperationPayment:
		steps = append(steps,
			domain.FlowStep{ID: "select_source_account", Label: "Select source account", Type: domain.StepTypeSelect},
			domain.FlowStep{ID: "select_destination_account", Label: "Select destination account", Type: domain.StepTypeSelect},
		)
	case domain.OperationBalanceInquiry:
		steps = append(steps, domain.FlowStep{ID: "select_account", Label: "Select account", Type: domain.StepTypeSelect})
	}

	if i.Amount != nil {
		steps = append(steps, domain.FlowStep{
			ID:    "confirm_amount",
			Label: fmt.Sprintf("Confirm %s %s", i.Amount.StringFixed(2), i.Currency),
			Type:  domain.StepTypeConfirm,
		})
	}

	steps = append(steps, domain.FlowStep{ID: "processing", Label: "Processing", Type: domain.StepTypeProcessing})
	return steps
}

type Controller struct {
	store store.Store
}

func NewController(st store.Store) *Controller {
	return &Controller{store: st}
}

// Begin creates the flow for an intent whose execution is starting. Intents
// still gathering details have no flow.
func (c *Controller) Begin(ctx context.Context, i *domain.TransactionIntent) (*domain.ScreenFlow, error) {
	if i.Status != domain.IntentStatusReadyToExecute {
		return nil, fmt.Errorf("Begin: intent %s is %s: %w", i.ID, i.Status, domain.ErrInvalidState)
	}

	now := time.Now().UTC()
	f := &domain.ScreenFlow{
		ID:        uuid.New(),
		IntentID:  i.ID,
		Steps:     Build(i),
		Status:    domain.FlowStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.CreateFlow(ctx, f); err != nil {
		return nil, fmt.Errorf("Begin: %w", err)
	}
	return f, nil
}

func (c *Controller) Get(ctx context.Context, flowID uuid.UUID) (*domain.ScreenFlow, error) {
	f, err := c.store.FlowByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return f, nil
}

func (c *Controller) GetByIntent(ctx context.Context, intentID uuid.UUID) (*domain.ScreenFlow, error) {
	f, err := c.store.FlowByIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("GetByIntent: %w", err)
	}
	return f, nil
}

// Interrupt pauses a pending flow and reopens its intent for re-confirmation.
// Every captured context field survives; only the confirm flag is cleared.
// Flows of committed transactions cannot be interrupted.
func (c *Controller) Interrupt(ctx context.Context, flowID uuid.UUID) (*domain.ScreenFlow, *domain.TransactionIntent, error) {
	f, err := c.store.FlowByID(ctx, flowID)
	if err != nil {
		return nil, nil, fmt.Errorf("Interrupt: %w", err)
	}
	if f.Status != domain.FlowStatusPending {
		return nil, nil, fmt.Errorf("Interrupt: flow %s is %s: %w", f.ID, f.Status, domain.ErrInvalidState)
	}

	i, err := c.store.IntentByID(ctx, f.IntentID)
	if err != nil {
		return nil, nil, fmt.Errorf("Interrupt: %w", err)
	}
	if i.Status == domain.IntentStatusCompleted {
		return nil, nil, fmt.Errorf("Interrupt: intent %s already completed: %w", i.ID, domain.ErrInvalidState)
	}

	f.Status = domain.FlowStatusInterrupted
	f.UpdatedAt = time.Now().UTC()
	if err := c.store.UpdateFlow(ctx, f); err != nil {
		return nil, nil, fmt.Errorf("Interrupt: %w", err)
	}

	intent.Reopen(i)
	if err := c.store.UpdateIntent(ctx, i); err != nil {
		return nil, nil, fmt.Errorf("Interrupt: %w", err)
	}
	return f, i, nil
}

// Updater is satisfied by both the store and its atomic tx view: a successful
// settle commits with the transaction, a failed one is recorded after rollback.
type Updater interface {
	UpdateFlow(ctx context.Context, f *domain.ScreenFlow) error
}

// Settle appends the terminal step and final status for the flow.
func Settle(ctx context.Context, u Updater, f *domain.ScreenFlow, succeeded bool) error {
	if succeeded {
		f.Steps = append(f.Steps, domain.FlowStep{ID: "success", Label: "Transaction complete", Type: domain.StepTypeSuccess})
		f.Status = domain.FlowStatusComplete
	} else {
		f.Steps = append(f.Steps, domain.FlowStep{ID: "error", Label: "Transaction failed", Type: domain.StepTypeError})
		f.Status = domain.FlowStatusInterrupted
	}
	f.UpdatedAt = time.Now().UTC()
	if err := u.UpdateFlow(ctx, f); err != nil {
		return fmt.Errorf("Settle: %w", err)
	}
	return nil
}
