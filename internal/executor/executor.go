// Package executor atomically validates and applies balance changes, writes
// the immutable transaction record, and advances the daily-limit tracker.
// Any failure after validation leaves balances and limits untouched.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/flow"
	"github.com/conversant-bank/atm-backend/internal/intent"
	"github.com/conversant-bank/atm-backend/internal/limits"
	"github.com/conversant-bank/atm-backend/internal/logging"
	"github.com/conversant-bank/atm-backend/internal/store"
)

// Request is the structured form of an executable transaction, either derived
// from a READY_TO_EXECUTE intent or supplied directly by the legacy endpoints.
type Request struct {
	CustomerID    uuid.UUID
	IntentID      *uuid.UUID
	Operation     domain.Operation
	FromAccountID *uuid.UUID
	ToAccountID   *uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	ReceiptMode   domain.ReceiptMode
	NewPin        string
}

type Result struct {
	Transaction    *domain.Transaction
	Balances       map[uuid.UUID]decimal.Decimal
	RemainingLimit *decimal.Decimal
	LimitCategory  domain.LimitCategory
	Flow           *domain.ScreenFlow
}

type Executor struct {
	store   store.Store
	limits  *limits.Tracker
	flows   *flow.Controller
	hashPIN func(string) (string, error)
	now     func() time.Time
}

func New(st store.Store, tracker *limits.Tracker, flows *flow.Controller, hashPIN func(string) (string, error)) *Executor {
	return &Executor{
		store:   st,
		limits:  tracker,
		flows:   flows,
		hashPIN: hashPIN,
		now:     time.Now,
	}
}

// ExecuteIntent runs a READY_TO_EXECUTE intent to completion: it opens the
// screen flow, applies the balance changes atomically, and marks the intent
// COMPLETED inside the same boundary.
func (e *Executor) ExecuteIntent(ctx context.Context, sess *domain.Session, intentID uuid.UUID) (*Result, error) {
	i, err := e.store.IntentByID(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("ExecuteIntent: %w", err)
	}
	if i.SessionID != sess.ID {
		return nil, fmt.Errorf("ExecuteIntent: %w", domain.ErrNotFound)
	}
	if i.Terminal() {
		return nil, fmt.Errorf("ExecuteIntent: intent is %s: %w", i.Status, domain.ErrInvalidState)
	}
	if i.Status != domain.IntentStatusReadyToExecute {
		return nil, fmt.Errorf("ExecuteIntent: missing %v: %w", i.MissingFields, domain.ErrIntentNotReady)
	}

	f, err := e.flows.Begin(ctx, i)
	if err != nil {
		return nil, fmt.Errorf("ExecuteIntent: %w", err)
	}

	req := Request{
		CustomerID:    sess.CustomerID,
		IntentID:      &i.ID,
		Operation:     i.Operation,
		FromAccountID: i.FromAccountID,
		ToAccountID:   i.ToAccountID,
		Currency:      i.Currency,
		ReceiptMode:   i.ReceiptPref,
		NewPin:        i.Context[intent.FieldNewPin],
	}
	if i.Amount != nil {
		req.Amount = *i.Amount
	}

	res, err := e.execute(ctx, req, i, f)
	if err != nil {
		if settleErr := flow.Settle(ctx, e.store, f, false); settleErr != nil {
			logging.FromContext(ctx).Error("flow settle after failure", "error", settleErr, "flow_id", f.ID)
		}
		return nil, fmt.Errorf("ExecuteIntent: %w", err)
	}
	res.Flow = f
	return res, nil
}

// Execute serves the structured phase-5 and legacy endpoints, which carry the
// full field set up front and have no intent or flow attached.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	res, err := e.execute(ctx, req, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}
	return res, nil
}

func (e *Executor) execute(ctx context.Context, req Request, i *domain.TransactionIntent, f *domain.ScreenFlow) (*Result, error) {
	log := logging.FromContext(ctx)

	switch req.Operation {
	case domain.OperationBalanceInquiry:
		return e.balanceInquiry(ctx, req, i, f)
	case domain.OperationPinChange:
		return e.pinChange(ctx, req, i, f)
	}

	if req.Amount.IsZero() || req.Amount.IsNegative() {
		return nil, fmt.Errorf("execute: amount %s: %w", req.Amount, domain.ErrValidation)
	}

	debitID, creditID, err := legsFor(req)
	if err != nil {
		return nil, err
	}

	category, _ := domain.CategoryForOperation(req.Operation)

	result := &Result{
		Balances:      make(map[uuid.UUID]decimal.Decimal),
		LimitCategory: category,
	}

	err = e.store.Atomic(ctx, func(tx store.Tx) error {
		accounts, err := lockAccounts(ctx, tx, debitID, creditID)
		if err != nil {
			return err
		}

		for _, acct := range accounts {
			if acct.CustomerID != req.CustomerID {
				return fmt.Errorf("account %s: %w", acct.ID, domain.ErrNotFound)
			}
			if acct.Status != domain.AccountStatusActive {
				return fmt.Errorf("account %s is %s: %w", acct.ID, acct.Status, domain.ErrAccountInactive)
			}
		}

		var limitAcct *domain.Account
		if debitID != nil {
			debit := accounts[*debitID]
			if debit.Balance.LessThan(req.Amount) {
				return fmt.Errorf("balance %s below %s: %w", debit.Balance, req.Amount, domain.ErrInsufficientFunds)
			}
			limitAcct = debit
		} else if creditID != nil {
			limitAcct = accounts[*creditID]
		}

		if err := e.limits.Consume(ctx, tx, limitAcct, category, req.Amount); err != nil {
			return err
		}

		if debitID != nil {
			debit := accounts[*debitID]
			debit.Balance = debit.Balance.Sub(req.Amount)
			if err := tx.UpdateAccountBalance(ctx, debit.ID, debit.Balance); err != nil {
				return err
			}
			result.Balances[debit.ID] = debit.Balance
		}
		if creditID != nil {
			credit := accounts[*creditID]
			credit.Balance = credit.Balance.Add(req.Amount)
			if err := tx.UpdateAccountBalance(ctx, credit.ID, credit.Balance); err != nil {
				return err
			}
			result.Balances[credit.ID] = credit.Balance
		}

		txn := e.newTransaction(req, domain.TransactionStatusCompleted, nil)
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		result.Transaction = txn

		if i != nil {
			i.Status = domain.IntentStatusCompleted
			i.UpdatedAt = e.now().UTC()
			if err := tx.UpdateIntent(ctx, i); err != nil {
				return err
			}
		}
		if f != nil {
			if err := flow.Settle(ctx, tx, f, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			e.writeFailureRecord(ctx, req, "insufficient_funds")
		}
		log.Warn("transaction rejected",
			"operation", req.Operation,
			"amount", req.Amount,
			"error", err,
		)
		return nil, err
	}

	if limitID := limitAccountID(debitID, creditID); limitID != nil {
		acct, err := e.store.AccountByID(ctx, *limitID)
		if err == nil {
			if remaining, err := e.limits.Remaining(ctx, acct, category); err == nil {
				result.RemainingLimit = &remaining
			}
		}
	}

	log.Info("transaction committed",
		"transaction_id", result.Transaction.ID,
		"operation", req.Operation,
		"amount", req.Amount.StringFixed(2),
		"currency", req.Currency,
	)
	return result, nil
}

func (e *Executor) balanceInquiry(ctx context.Context, req Request, i *domain.TransactionIntent, f *domain.ScreenFlow) (*Result, error) {
	if req.FromAccountID == nil {
		return nil, fmt.Errorf("balanceInquiry: %w", domain.ErrValidation)
	}
	acct, err := e.store.AccountByID(ctx, *req.FromAccountID)
	if err != nil {
		return nil, fmt.Errorf("balanceInquiry: %w", err)
	}
	if acct.CustomerID != req.CustomerID {
		return nil, fmt.Errorf("balanceInquiry: %w", domain.ErrNotFound)
	}

	if i != nil {
		i.Status = domain.IntentStatusCompleted
		i.UpdatedAt = e.now().UTC()
		if err := e.store.UpdateIntent(ctx, i); err != nil {
			return nil, fmt.Errorf("balanceInquiry: %w", err)
		}
	}
	if f != nil {
		if err := flow.Settle(ctx, e.store, f, true); err != nil {
			return nil, fmt.Errorf("balanceInquiry: %w", err)
		}
	}
	return &Result{
		Balances: map[uuid.UUID]decimal.Decimal{acct.ID: acct.Balance},
	}, nil
}

func (e *Executor) pinChange(ctx context.Context, req Request, i *domain.TransactionIntent, f *domain.ScreenFlow) (*Result, error) {
	if req.NewPin == "" {
		return nil, fmt.Errorf("pinChange: %w", domain.ErrValidation)
	}
	hash, err := e.hashPIN(req.NewPin)
	if err != nil {
		return nil, fmt.Errorf("pinChange: %w", err)
	}

	err = e.store.Atomic(ctx, func(tx store.Tx) error {
		if err := tx.UpdateCustomerPINHash(ctx, req.CustomerID, hash); err != nil {
			return err
		}
		if i != nil {
			i.Status = domain.IntentStatusCompleted
			i.UpdatedAt = e.now().UTC()
			if err := tx.UpdateIntent(ctx, i); err != nil {
				return err
			}
		}
		if f != nil {
			return flow.Settle(ctx, tx, f, true)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pinChange: %w", err)
	}
	return &Result{Balances: map[uuid.UUID]decimal.Decimal{}}, nil
}

// writeFailureRecord keeps the audit trail for rejected debits. The failed
// row commits on its own; balances and limits were already rolled back.
func (e *Executor) writeFailureRecord(ctx context.Context, req Request, reason string) {
	details, _ := json.Marshal(map[string]string{"reason": reason})
	txn := e.newTransaction(req, domain.TransactionStatusFailed, details)
	if err := e.store.CreateTransaction(ctx, txn); err != nil {
		logging.FromContext(ctx).Error("failure record write", "error", err)
	}
}

func (e *Executor) newTransaction(req Request, status domain.TransactionStatus, details json.RawMessage) *domain.Transaction {
	return &domain.Transaction{
		ID:            uuid.New(),
		IntentID:      req.IntentID,
		Operation:     req.Operation,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        status,
		Details:       details,
		ReceiptMode:   req.ReceiptMode,
		Timestamp:     e.now().UTC(),
	}
}

// legsFor resolves which accounts are debited and credited.
func legsFor(req Request) (debit, credit *uuid.UUID, err error) {
	switch req.Operation {
	case domain.OperationWithdraw, domain.OperationBillPayment:
		if req.FromAccountID == nil {
			return nil, nil, fmt.Errorf("legsFor: missing source account: %w", domain.ErrValidation)
		}
		return req.FromAccountID, nil, nil
	case domain.OperationDeposit, domain.OperationCashDeposit, domain.OperationCheckDeposit:
		if req.ToAccountID == nil {
			return nil, nil, fmt.Errorf("legsFor: missing destination account: %w", domain.ErrValidation)
		}
		return nil, req.ToAccountID, nil
	case domain.OperationTransfer, domain.OperationPayment:
		if req.FromAccountID == nil || req.ToAccountID == nil {
			return nil, nil, fmt.Errorf("legsFor: missing transfer accounts: %w", domain.ErrValidation)
		}
		if *req.FromAccountID == *req.ToAccountID {
			return nil, nil, fmt.Errorf("legsFor: source equals destination: %w", domain.ErrValidation)
		}
		return req.FromAccountID, req.ToAccountID, nil
	default:
		return nil, nil, fmt.Errorf("legsFor: operation %q: %w", req.Operation, domain.ErrValidation)
	}
}

func limitAccountID(debitID, creditID *uuid.UUID) *uuid.UUID {
	if debitID != nil {
		return debitID
	}
	return creditID
}

// lockAccounts fetches the involved accounts in a deterministic order so two
// concurrent transfers over the same pair cannot deadlock.
func lockAccounts(ctx context.Context, tx store.Tx, ids ...*uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	var present []uuid.UUID
	for _, id := range ids {
		if id != nil {
			present = append(present, *id)
		}
	}
	sort.Slice(present, func(i, j int) bool {
		return present[i].String() < present[j].String()
	})

	out := make(map[uuid.UUID]*domain.Account, len(present))
	for _, id := range present {
		if _, ok := out[id]; ok {
			continue
		}
		acct, err := tx.AccountForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lockAccounts: %w", err)
		}
		out[id] = acct
	}
	return out, nil
}
