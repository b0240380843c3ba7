// Package limits maintains per-account, per-calendar-day accumulated totals
// and enforces the daily caps before a transaction commits.
package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/store"
)

type Tracker struct {
	store store.Store
	now   func() time.Time
}

func NewTracker(st store.Store) *Tracker {
	return &Tracker{store: st, now: time.Now}
}

// NewTrackerAt fixes the clock, for tests that cross day boundaries.
func NewTrackerAt(st store.Store, now func() time.Time) *Tracker {
	return &Tracker{store: st, now: now}
}

// Remaining reports how much of today's cap is left for the category.
func (t *Tracker) Remaining(ctx context.Context, acct *domain.Account, category domain.LimitCategory) (decimal.Decimal, error) {
	rec, err := t.store.LimitRecord(ctx, acct.ID, domain.LimitDate(t.now()))
	if err != nil {
		return decimal.Zero, fmt.Errorf("Remaining: %w", err)
	}
	remaining := acct.Limits.For(category).Sub(rec.Total(category))
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return remaining, nil
}

// Consume checks the day's quota and records the spend in one step. It must
// run inside the executor's atomic section so the increment commits with the
// transaction row, or not at all.
func (t *Tracker) Consume(ctx context.Context, tx store.Tx, acct *domain.Account, category domain.LimitCategory, amount decimal.Decimal) error {
	date := domain.LimitDate(t.now())

	rec, err := tx.LimitRecordForUpdate(ctx, acct.ID, date)
	if err != nil {
		return fmt.Errorf("Consume: %w", err)
	}

	remaining := acct.Limits.For(category).Sub(rec.Total(category))
	if amount.GreaterThan(remaining) {
		return fmt.Errorf("Consume: %s %s over remaining %s: %w",
			category, amount, remaining, domain.ErrLimitExceeded)
	}

	rec.Add(category, amount)
	rec.UpdatedAt = t.now().UTC()
	if err := tx.SaveLimitRecord(ctx, rec); err != nil {
		return fmt.Errorf("Consume: %w", err)
	}
	return nil
}
