package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/store"
)

// Atomic wraps fn in a database transaction. Row locks taken through the tx
// view serialize concurrent sections touching the same accounts.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Atomic: begin: %w", err)
	}

	if err := fn(&pgTx{tx: dbTx}); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			return fmt.Errorf("Atomic: rollback: %v: %w", rbErr, err)
		}
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("Atomic: commit: %w", err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) AccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return accountByID(ctx, t.tx, id, " FOR UPDATE")
}

func (t *pgTx) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1 WHERE id = $2`, balance, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateAccountBalance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateAccountBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateAccountBalance: %w", domain.ErrNotFound)
	}
	return nil
}

// LimitRecordForUpdate upserts the (account, date) row and locks it for the
// rest of the transaction. The insert-then-lock sequence means two concurrent
// debits on the same account serialize here even on the account's first
// transaction of the day.
func (t *pgTx) LimitRecordForUpdate(ctx context.Context, accountID uuid.UUID, date string) (*domain.DailyLimitRecord, error) {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO daily_limit_records (account_id, limit_date, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, limit_date) DO NOTHING`,
		accountID, date, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("LimitRecordForUpdate: upsert: %w", err)
	}

	row := t.tx.QueryRowContext(ctx,
		`SELECT `+limitColumns+` FROM daily_limit_records
		WHERE account_id = $1 AND limit_date = $2 FOR UPDATE`,
		accountID, date,
	)
	rec, err := scanLimitRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("LimitRecordForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("LimitRecordForUpdate: %w", err)
	}
	return rec, nil
}

func (t *pgTx) SaveLimitRecord(ctx context.Context, rec *domain.DailyLimitRecord) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE daily_limit_records SET
			total_withdrawals = $1, total_deposits = $2, total_transfers = $3,
			withdrawal_count = $4, deposit_count = $5, transfer_count = $6, updated_at = $7
		WHERE account_id = $8 AND limit_date = $9`,
		rec.TotalWithdrawals, rec.TotalDeposits, rec.TotalTransfers,
		rec.WithdrawalCount, rec.DepositCount, rec.TransferCount, rec.UpdatedAt,
		rec.AccountID, rec.Date,
	)
	if err != nil {
		return fmt.Errorf("SaveLimitRecord: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SaveLimitRecord: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SaveLimitRecord: %w", domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	return createTransaction(ctx, t.tx, txn)
}

func (t *pgTx) UpdateIntent(ctx context.Context, i *domain.TransactionIntent) error {
	return updateIntent(ctx, t.tx, i)
}

func (t *pgTx) UpdateFlow(ctx context.Context, f *domain.ScreenFlow) error {
	return updateFlow(ctx, t.tx, f)
}

func (t *pgTx) UpdateCustomerPINHash(ctx context.Context, customerID uuid.UUID, hash string) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE customers SET pin_hash = $1, pin_change_count = pin_change_count + 1 WHERE id = $2`,
		hash, customerID,
	)
	if err != nil {
		return fmt.Errorf("UpdateCustomerPINHash: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateCustomerPINHash: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateCustomerPINHash: %w", domain.ErrNotFound)
	}
	return nil
}
