// Package testutil provides shared fixtures over the store interface plus a
// disposable Postgres for integration tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/store"
)

const (
	TestPAN    = "4111111111111111"
	TestPIN    = "1234"
	TestSecret = "test-secret"
)

func DefaultLimits() domain.DailyLimits {
	return domain.DailyLimits{
		Withdrawal: decimal.RequireFromString("500.00"),
		Deposit:    decimal.RequireFromString("10000.00"),
		Transfer:   decimal.RequireFromString("5000.00"),
	}
}

// SeedCustomer creates a customer with an active card.
func SeedCustomer(t *testing.T, st store.Store) (*domain.Customer, *domain.Card) {
	t.Helper()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPIN), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}

	customer := &domain.Customer{
		ID:                uuid.New(),
		Name:              "John Doe",
		Email:             "john.doe@example.com",
		PreferredLanguage: "en",
		PINHash:           string(hash),
		CreatedAt:         time.Now().UTC(),
	}
	if err := st.CreateCustomer(ctx, customer); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	card := &domain.Card{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		PAN:        TestPAN,
		MaskedPAN:  domain.MaskPAN(TestPAN),
		Status:     domain.CardStatusActive,
		Expiry:     "1228",
		CreatedAt:  time.Now().UTC(),
	}
	if err := st.CreateCard(ctx, card); err != nil {
		t.Fatalf("seed card: %v", err)
	}
	return customer, card
}

// SeedCustomer2 creates a second customer with its own card, for tests that
// need cross-customer isolation.
func SeedCustomer2(t *testing.T, st store.Store) (*domain.Customer, *domain.Card) {
	t.Helper()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("5678"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}

	customer := &domain.Customer{
		ID:                uuid.New(),
		Name:              "Maria Garcia",
		Email:             "maria.garcia@example.com",
		PreferredLanguage: "es",
		PINHash:           string(hash),
		CreatedAt:         time.Now().UTC(),
	}
	if err := st.CreateCustomer(ctx, customer); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	card := &domain.Card{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		PAN:        "4222222222222222",
		MaskedPAN:  domain.MaskPAN("4222222222222222"),
		Status:     domain.CardStatusActive,
		Expiry:     "0630",
		CreatedAt:  time.Now().UTC(),
	}
	if err := st.CreateCard(ctx, card); err != nil {
		t.Fatalf("seed card: %v", err)
	}
	return customer, card
}

// SeedAccount creates an active account with the default daily limits.
func SeedAccount(t *testing.T, st store.Store, customerID uuid.UUID, accType domain.AccountType, balance string) *domain.Account {
	t.Helper()
	ctx := context.Background()

	number := uuid.New().String()[:10]
	acct := &domain.Account{
		ID:           uuid.New(),
		CustomerID:   customerID,
		Type:         accType,
		Currency:     "USD",
		Balance:      decimal.RequireFromString(balance),
		Number:       number,
		MaskedNumber: domain.MaskAccountNumber(number),
		Name:         string(accType),
		Status:       domain.AccountStatusActive,
		Limits:       DefaultLimits(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.CreateAccount(ctx, acct); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return acct
}

// SeedFrozenAccount creates a checking account that cannot transact.
func SeedFrozenAccount(t *testing.T, st store.Store, customerID uuid.UUID, balance string) *domain.Account {
	t.Helper()

	number := uuid.New().String()[:10]
	acct := &domain.Account{
		ID:           uuid.New(),
		CustomerID:   customerID,
		Type:         domain.AccountTypeChecking,
		Currency:     "USD",
		Balance:      decimal.RequireFromString(balance),
		Number:       number,
		MaskedNumber: domain.MaskAccountNumber(number),
		Name:         "frozen checking",
		Status:       domain.AccountStatusFrozen,
		Limits:       DefaultLimits(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("seed frozen account: %v", err)
	}
	return acct
}

// SeedSession creates a session already past the full handshake.
func SeedSession(t *testing.T, st store.Store, customer *domain.Customer, card *domain.Card) *domain.Session {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	sess := &domain.Session{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		CardID:     card.ID,
		MaskedPAN:  card.MaskedPAN,
		Status:     domain.SessionStatusActive,
		Phase:      domain.PhaseOverviewFinalized,
		Preferences: domain.Preferences{
			Language:    "en",
			Email:       customer.Email,
			ReceiptMode: domain.ReceiptModeNone,
		},
		Outcomes:  make(map[domain.Phase]domain.PhaseOutcome),
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
	if err := st.CreateSession(ctx, sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return sess
}

// SeedReadyIntent creates a confirmed withdraw intent ready to execute.
func SeedReadyIntent(t *testing.T, st store.Store, sess *domain.Session, from *domain.Account, amount string) *domain.TransactionIntent {
	t.Helper()
	ctx := context.Background()

	amt := decimal.RequireFromString(amount)
	now := time.Now().UTC()
	i := &domain.TransactionIntent{
		ID:            uuid.New(),
		SessionID:     sess.ID,
		Operation:     domain.OperationWithdraw,
		FromAccountID: &from.ID,
		Amount:        &amt,
		Currency:      "USD",
		Status:        domain.IntentStatusReadyToExecute,
		MissingFields: []string{},
		Context: map[string]string{
			"fromAccount":  from.ID.String(),
			"amount":       amount,
			"pinConfirmed": "true",
			"confirm":      "true",
		},
		Confirmed: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateIntent(ctx, i); err != nil {
		t.Fatalf("seed intent: %v", err)
	}
	return i
}
