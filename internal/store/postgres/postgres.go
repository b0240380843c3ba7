// Package postgres implements the store contract on PostgreSQL with raw SQL
// and row-level locking. Schema lives under migrations/.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/conversant-bank/atm-backend/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both *sql.DB and *sql.Tx so reads can be shared
// between the store and its atomic sections.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

const customerColumns = `id, name, email, preferred_language, pin_hash, pin_change_count, created_at`

func (s *Store) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Email, c.PreferredLanguage, c.PINHash, c.PINChangeCount, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateCustomer: %w", err)
	}
	return nil
}

func (s *Store) CustomerByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id,
	)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("CustomerByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("CustomerByID: %w", err)
	}
	return c, nil
}

func scanCustomer(s scanner) (*domain.Customer, error) {
	var c domain.Customer
	err := s.Scan(&c.ID, &c.Name, &c.Email, &c.PreferredLanguage, &c.PINHash, &c.PINChangeCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const cardColumns = `id, customer_id, pan, masked_pan, status, expiry, created_at`

func (s *Store) CreateCard(ctx context.Context, c *domain.Card) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cards (`+cardColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.CustomerID, c.PAN, c.MaskedPAN, c.Status, c.Expiry, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateCard: %w", err)
	}
	return nil
}

func (s *Store) CardByPAN(ctx context.Context, pan string) (*domain.Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE pan = $1`, pan,
	)
	var c domain.Card
	err := row.Scan(&c.ID, &c.CustomerID, &c.PAN, &c.MaskedPAN, &c.Status, &c.Expiry, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("CardByPAN: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("CardByPAN: %w", err)
	}
	return &c, nil
}

const accountColumns = `id, customer_id, account_type, currency, balance, account_number,
	masked_number, account_name, status, limit_withdrawal, limit_deposit, limit_transfer, created_at`

func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (
			id, customer_id, account_type, currency, balance, account_number,
			masked_number, account_name, status, limit_withdrawal, limit_deposit, limit_transfer, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.CustomerID, a.Type, a.Currency, a.Balance, a.Number,
		a.MaskedNumber, a.Name, a.Status,
		a.Limits.Withdrawal, a.Limits.Deposit, a.Limits.Transfer, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	return nil
}

func (s *Store) AccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return accountByID(ctx, s.db, id, "")
}

func accountByID(ctx context.Context, q querier, id uuid.UUID, suffix string) (*domain.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`+suffix, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("accountByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("accountByID: %w", err)
	}
	return a, nil
}

func (s *Store) AccountsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE customer_id = $1 ORDER BY created_at`, customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("AccountsByCustomer: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("AccountsByCustomer: scan: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AccountsByCustomer: rows: %w", err)
	}
	return accounts, nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(
		&a.ID, &a.CustomerID, &a.Type, &a.Currency, &a.Balance, &a.Number,
		&a.MaskedNumber, &a.Name, &a.Status,
		&a.Limits.Withdrawal, &a.Limits.Deposit, &a.Limits.Transfer, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
