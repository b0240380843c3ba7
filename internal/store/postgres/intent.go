package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conversant-bank/atm-backend/internal/domain"
)

const intentColumns = `id, session_id, operation, from_account_id, to_account_id, amount,
	currency, receipt_pref, status, missing_fields, context, confirmed, created_at, updated_at`

func (s *Store) CreateIntent(ctx context.Context, i *domain.TransactionIntent) error {
	return createIntent(ctx, s.db, i)
}

func createIntent(ctx context.Context, q querier, i *domain.TransactionIntent) error {
	missing, ictx, err := marshalIntentBlobs(i)
	if err != nil {
		return fmt.Errorf("createIntent: %w", err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO transaction_intents (
			id, session_id, operation, from_account_id, to_account_id, amount,
			currency, receipt_pref, status, missing_fields, context, confirmed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		i.ID, i.SessionID, i.Operation, i.FromAccountID, i.ToAccountID, decimalPtr(i.Amount),
		i.Currency, nullString(string(i.ReceiptPref)), i.Status, missing, ictx, i.Confirmed,
		i.CreatedAt, i.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("createIntent: %w", err)
	}
	return nil
}

func (s *Store) IntentByID(ctx context.Context, id uuid.UUID) (*domain.TransactionIntent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM transaction_intents WHERE id = $1`, id,
	)
	i, err := scanIntent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("IntentByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("IntentByID: %w", err)
	}
	return i, nil
}

func (s *Store) UpdateIntent(ctx context.Context, i *domain.TransactionIntent) error {
	return updateIntent(ctx, s.db, i)
}

func updateIntent(ctx context.Context, q querier, i *domain.TransactionIntent) error {
	missing, ictx, err := marshalIntentBlobs(i)
	if err != nil {
		return fmt.Errorf("updateIntent: %w", err)
	}
	res, err := q.ExecContext(ctx,
		`UPDATE transaction_intents SET
			from_account_id = $1, to_account_id = $2, amount = $3, currency = $4,
			receipt_pref = $5, status = $6, missing_fields = $7, context = $8,
			confirmed = $9, updated_at = $10
		WHERE id = $11`,
		i.FromAccountID, i.ToAccountID, decimalPtr(i.Amount), i.Currency,
		nullString(string(i.ReceiptPref)), i.Status, missing, ictx,
		i.Confirmed, i.UpdatedAt, i.ID,
	)
	if err != nil {
		return fmt.Errorf("updateIntent: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updateIntent: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("updateIntent: %w", domain.ErrNotFound)
	}
	return nil
}

func marshalIntentBlobs(i *domain.TransactionIntent) ([]byte, []byte, error) {
	if i.MissingFields == nil {
		i.MissingFields = []string{}
	}
	missing, err := json.Marshal(i.MissingFields)
	if err != nil {
		return nil, nil, err
	}
	if i.Context == nil {
		i.Context = make(map[string]string)
	}
	ictx, err := json.Marshal(i.Context)
	if err != nil {
		return nil, nil, err
	}
	return missing, ictx, nil
}

func scanIntent(s scanner) (*domain.TransactionIntent, error) {
	var (
		i           domain.TransactionIntent
		amount      sql.NullString
		receiptPref sql.NullString
		missing     []byte
		ictx        []byte
	)
	err := s.Scan(
		&i.ID, &i.SessionID, &i.Operation, &i.FromAccountID, &i.ToAccountID, &amount,
		&i.Currency, &receiptPref, &i.Status, &missing, &ictx, &i.Confirmed,
		&i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		i.Amount = &d
	}
	if receiptPref.Valid {
		i.ReceiptPref = domain.ReceiptMode(receiptPref.String)
	}
	if err := json.Unmarshal(missing, &i.MissingFields); err != nil {
		return nil, fmt.Errorf("missing_fields: %w", err)
	}
	if err := json.Unmarshal(ictx, &i.Context); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return &i, nil
}

const transactionColumns = `id, intent_id, operation, from_account_id, to_account_id, amount,
	currency, status, details, receipt_mode, ts`

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	return createTransaction(ctx, s.db, t)
}

func createTransaction(ctx context.Context, q querier, t *domain.Transaction) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO transactions (
			id, intent_id, operation, from_account_id, to_account_id, amount,
			currency, status, details, receipt_mode, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.IntentID, t.Operation, t.FromAccountID, t.ToAccountID, t.Amount,
		t.Currency, t.Status, nullRaw(t.Details), nullString(string(t.ReceiptMode)), t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("createTransaction: %w", err)
	}
	return nil
}

func (s *Store) TransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("TransactionByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("TransactionByID: %w", err)
	}
	return t, nil
}

func (s *Store) TransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY ts DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("TransactionsByAccount: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("TransactionsByAccount: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("TransactionsByAccount: rows: %w", err)
	}
	return txns, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var (
		t           domain.Transaction
		details     []byte
		receiptMode sql.NullString
	)
	err := s.Scan(
		&t.ID, &t.IntentID, &t.Operation, &t.FromAccountID, &t.ToAccountID, &t.Amount,
		&t.Currency, &t.Status, &details, &receiptMode, &t.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		t.Details = json.RawMessage(details)
	}
	if receiptMode.Valid {
		t.ReceiptMode = domain.ReceiptMode(receiptMode.String)
	}
	return &t, nil
}

func decimalPtr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
