// Package store defines the persistence contract shared by the in-memory and
// Postgres implementations. One Store is constructed at process start and
// handed to every component; there is no process-wide mutable state besides it.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conversant-bank/atm-backend/internal/domain"
)

type Store interface {
	CreateCustomer(ctx context.Context, c *domain.Customer) error
	CustomerByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)

	CreateCard(ctx context.Context, c *domain.Card) error
	CardByPAN(ctx context.Context, pan string) (*domain.Card, error)

	CreateAccount(ctx context.Context, a *domain.Account) error
	AccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	AccountsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Account, error)

	CreateSession(ctx context.Context, s *domain.Session) error
	SessionByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	UpdateSession(ctx context.Context, s *domain.Session) error

	CreateIntent(ctx context.Context, i *domain.TransactionIntent) error
	IntentByID(ctx context.Context, id uuid.UUID) (*domain.TransactionIntent, error)
	UpdateIntent(ctx context.Context, i *domain.TransactionIntent) error

	// CreateTransaction outside Atomic is used for FAILED audit rows only;
	// COMPLETED rows are written inside the executor's atomic unit.
	CreateTransaction(ctx context.Context, t *domain.Transaction) error
	TransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	TransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error)

	CreateFlow(ctx context.Context, f *domain.ScreenFlow) error
	FlowByID(ctx context.Context, id uuid.UUID) (*domain.ScreenFlow, error)
	FlowByIntent(ctx context.Context, intentID uuid.UUID) (*domain.ScreenFlow, error)
	UpdateFlow(ctx context.Context, f *domain.ScreenFlow) error

	AppendMessage(ctx context.Context, m *domain.ConversationMessage) error
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.ConversationMessage, error)

	CreateReceipt(ctx context.Context, r *domain.Receipt) error

	// LimitRecord returns the day's accumulated totals, or a zero record if no
	// transaction has been committed yet for that account and date.
	LimitRecord(ctx context.Context, accountID uuid.UUID, date string) (*domain.DailyLimitRecord, error)

	// Atomic runs fn inside a single transaction boundary. Balance mutations,
	// the transaction row, the limit increment, and the intent status change
	// commit together or not at all. Concurrent Atomic sections touching the
	// same account serialize.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx is the view of the store available inside an Atomic section.
type Tx interface {
	AccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error

	// LimitRecordForUpdate upserts the (account, date) record and returns it
	// locked for the remainder of the atomic section.
	LimitRecordForUpdate(ctx context.Context, accountID uuid.UUID, date string) (*domain.DailyLimitRecord, error)
	SaveLimitRecord(ctx context.Context, rec *domain.DailyLimitRecord) error

	CreateTransaction(ctx context.Context, t *domain.Transaction) error
	UpdateIntent(ctx context.Context, i *domain.TransactionIntent) error
	UpdateFlow(ctx context.Context, f *domain.ScreenFlow) error
	UpdateCustomerPINHash(ctx context.Context, customerID uuid.UUID, hash string) error
}
