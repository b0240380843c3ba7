package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conversant-bank/atm-backend/internal/domain"
)

// memTx stages writes against copies and applies them only when the atomic
// section succeeds. The store's write lock is held for the tx's whole life.
type memTx struct {
	store *Store

	balances  map[uuid.UUID]decimal.Decimal
	limitRecs map[limitKey]*domain.DailyLimitRecord
	newTxns   []*domain.Transaction
	intents   map[uuid.UUID]*domain.TransactionIntent
	flows     map[uuid.UUID]*domain.ScreenFlow
	pinHashes map[uuid.UUID]string
}

func (t *memTx) AccountForUpdate(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	a, ok := t.store.accounts[id]
	if !ok {
		return nil, fmt.Errorf("AccountForUpdate: %w", domain.ErrNotFound)
	}
	cp := cloneAccount(a)
	if bal, ok := t.balances[id]; ok {
		cp.Balance = bal
	}
	return cp, nil
}

func (t *memTx) UpdateAccountBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal) error {
	if _, ok := t.store.accounts[id]; !ok {
		return fmt.Errorf("UpdateAccountBalance: %w", domain.ErrNotFound)
	}
	if t.balances == nil {
		t.balances = make(map[uuid.UUID]decimal.Decimal)
	}
	t.balances[id] = balance
	return nil
}

func (t *memTx) LimitRecordForUpdate(_ context.Context, accountID uuid.UUID, date string) (*domain.DailyLimitRecord, error) {
	key := limitKey{accountID, date}
	if staged, ok := t.limitRecs[key]; ok {
		cp := *staged
		return &cp, nil
	}
	if rec, ok := t.store.limits[key]; ok {
		cp := *rec
		return &cp, nil
	}
	return domain.NewDailyLimitRecord(accountID, date), nil
}

func (t *memTx) SaveLimitRecord(_ context.Context, rec *domain.DailyLimitRecord) error {
	if t.limitRecs == nil {
		t.limitRecs = make(map[limitKey]*domain.DailyLimitRecord)
	}
	cp := *rec
	t.limitRecs[limitKey{rec.AccountID, rec.Date}] = &cp
	return nil
}

func (t *memTx) CreateTransaction(_ context.Context, txn *domain.Transaction) error {
	t.newTxns = append(t.newTxns, cloneTransaction(txn))
	return nil
}

func (t *memTx) UpdateIntent(_ context.Context, i *domain.TransactionIntent) error {
	if _, ok := t.store.intents[i.ID]; !ok {
		return fmt.Errorf("UpdateIntent: %w", domain.ErrNotFound)
	}
	if t.intents == nil {
		t.intents = make(map[uuid.UUID]*domain.TransactionIntent)
	}
	t.intents[i.ID] = cloneIntent(i)
	return nil
}

func (t *memTx) UpdateFlow(_ context.Context, f *domain.ScreenFlow) error {
	if _, ok := t.store.flows[f.ID]; !ok {
		return fmt.Errorf("UpdateFlow: %w", domain.ErrNotFound)
	}
	if t.flows == nil {
		t.flows = make(map[uuid.UUID]*domain.ScreenFlow)
	}
	t.flows[f.ID] = cloneFlow(f)
	return nil
}

func (t *memTx) UpdateCustomerPINHash(_ context.Context, customerID uuid.UUID, hash string) error {
	if _, ok := t.store.customers[customerID]; !ok {
		return fmt.Errorf("UpdateCustomerPINHash: %w", domain.ErrNotFound)
	}
	if t.pinHashes == nil {
		t.pinHashes = make(map[uuid.UUID]string)
	}
	t.pinHashes[customerID] = hash
	return nil
}

// apply commits staged writes. Caller holds the store write lock.
func (t *memTx) apply() {
	for id, bal := range t.balances {
		t.store.accounts[id].Balance = bal
	}
	for key, rec := range t.limitRecs {
		t.store.limits[key] = rec
	}
	for _, txn := range t.newTxns {
		t.store.putTransaction(txn)
	}
	for id, i := range t.intents {
		t.store.intents[id] = i
	}
	for id, f := range t.flows {
		t.store.flows[id] = f
	}
	for id, hash := range t.pinHashes {
		c := t.store.customers[id]
		c.PINHash = hash
		c.PINChangeCount++
	}
}
