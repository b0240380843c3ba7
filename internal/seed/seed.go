// Package seed loads the demo customers, cards, accounts, and transaction
// history the project ships with.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conversant-bank/atm-backend/internal/auth"
	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/logging"
	"github.com/conversant-bank/atm-backend/internal/store"
)

type customerSpec struct {
	name     string
	email    string
	language string
	pin      string
	pan      string
	expiry   string
	accounts []accountSpec
}

type accountSpec struct {
	accType domain.AccountType
	number  string
	name    string
	balance string
}

var demoCustomers = []customerSpec{
	{
		name:     "John Doe",
		email:    "john.doe@example.com",
		language: "en",
		pin:      "1234",
		pan:      "4111111111111111",
		expiry:   "1228",
		accounts: []accountSpec{
			{domain.AccountTypeChecking, "1234567890", "My Checking", "2500.00"},
			{domain.AccountTypeSavings, "1234567891", "Emergency Fund", "4200.00"},
		},
	},
	{
		name:     "Maria Garcia",
		email:    "maria.garcia@example.com",
		language: "es",
		pin:      "5678",
		pan:      "4222222222222222",
		expiry:   "0630",
		accounts: []accountSpec{
			{domain.AccountTypeChecking, "2234567890", "Cuenta Corriente", "1800.00"},
			{domain.AccountTypeSavings, "2234567891", "Ahorros", "3600.00"},
		},
	},
}

// Load populates the store with the demo data set. It is a no-op when the
// first demo card already exists, so restarts do not duplicate rows.
func Load(ctx context.Context, st store.Store, limits domain.DailyLimits) error {
	if _, err := st.CardByPAN(ctx, demoCustomers[0].pan); err == nil {
		logging.FromContext(ctx).Info("seed data already present, skipping")
		return nil
	}

	now := time.Now().UTC()
	for _, spec := range demoCustomers {
		pinHash, err := auth.HashPIN(spec.pin)
		if err != nil {
			return fmt.Errorf("Load: %w", err)
		}

		customer := &domain.Customer{
			ID:                uuid.New(),
			Name:              spec.name,
			Email:             spec.email,
			PreferredLanguage: spec.language,
			PINHash:           pinHash,
			CreatedAt:         now,
		}
		if err := st.CreateCustomer(ctx, customer); err != nil {
			return fmt.Errorf("Load: %w", err)
		}

		card := &domain.Card{
			ID:         uuid.New(),
			CustomerID: customer.ID,
			PAN:        spec.pan,
			MaskedPAN:  domain.MaskPAN(spec.pan),
			Status:     domain.CardStatusActive,
			Expiry:     spec.expiry,
			CreatedAt:  now,
		}
		if err := st.CreateCard(ctx, card); err != nil {
			return fmt.Errorf("Load: %w", err)
		}

		var accounts []*domain.Account
		for _, as := range spec.accounts {
			balance, err := decimal.NewFromString(as.balance)
			if err != nil {
				return fmt.Errorf("Load: %w", err)
			}
			acct := &domain.Account{
				ID:           uuid.New(),
				CustomerID:   customer.ID,
				Type:         as.accType,
				Currency:     "USD",
				Balance:      balance,
				Number:       as.number,
				MaskedNumber: domain.MaskAccountNumber(as.number),
				Name:         as.name,
				Status:       domain.AccountStatusActive,
				Limits:       limits,
				CreatedAt:    now,
			}
			if err := st.CreateAccount(ctx, acct); err != nil {
				return fmt.Errorf("Load: %w", err)
			}
			accounts = append(accounts, acct)
		}

		if err := seedHistory(ctx, st, accounts, now); err != nil {
			return fmt.Errorf("Load: %w", err)
		}

		logging.FromContext(ctx).Info("seeded customer",
			"name", customer.Name,
			"masked_pan", card.MaskedPAN,
			"accounts", len(accounts),
		)
	}
	return nil
}

// seedHistory writes a plausible recent statement for the checking and
// savings pair so account details have something to show on first run.
func seedHistory(ctx context.Context, st store.Store, accounts []*domain.Account, now time.Time) error {
	if len(accounts) < 2 {
		return nil
	}
	checking, savings := accounts[0], accounts[1]

	entries := []struct {
		op      domain.Operation
		from    *uuid.UUID
		to      *uuid.UUID
		amount  string
		daysAgo int
		desc    string
	}{
		{domain.OperationDeposit, nil, &checking.ID, "1000.00", 10, "Payroll deposit"},
		{domain.OperationWithdraw, &checking.ID, nil, "200.00", 8, "ATM withdrawal"},
		{domain.OperationTransfer, &checking.ID, &savings.ID, "500.00", 5, "Transfer to savings"},
		{domain.OperationPayment, &checking.ID, nil, "150.00", 3, "Utility payment"},
		{domain.OperationDeposit, nil, &savings.ID, "300.00", 1, "Interest credit"},
	}

	for _, e := range entries {
		amount, err := decimal.NewFromString(e.amount)
		if err != nil {
			return err
		}
		details, _ := json.Marshal(map[string]string{"description": e.desc})
		txn := &domain.Transaction{
			ID:            uuid.New(),
			Operation:     e.op,
			FromAccountID: e.from,
			ToAccountID:   e.to,
			Amount:        amount,
			Currency:      "USD",
			Status:        domain.TransactionStatusCompleted,
			Details:       details,
			Timestamp:     now.AddDate(0, 0, -e.daysAgo),
		}
		if err := st.CreateTransaction(ctx, txn); err != nil {
			return err
		}
	}
	return nil
}
