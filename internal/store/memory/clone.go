package memory

import (
	"maps"

	"github.com/conversant-bank/atm-backend/internal/domain"
)

// Clones keep callers from mutating shared state through returned pointers.

func cloneCustomer(c *domain.Customer) *domain.Customer {
	cp := *c
	return &cp
}

func cloneCard(c *domain.Card) *domain.Card {
	cp := *c
	return &cp
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	return &cp
}

func cloneSession(s *domain.Session) *domain.Session {
	cp := *s
	cp.Outcomes = maps.Clone(s.Outcomes)
	return &cp
}

func cloneIntent(i *domain.TransactionIntent) *domain.TransactionIntent {
	cp := *i
	cp.MissingFields = append([]string(nil), i.MissingFields...)
	cp.Context = maps.Clone(i.Context)
	if i.FromAccountID != nil {
		v := *i.FromAccountID
		cp.FromAccountID = &v
	}
	if i.ToAccountID != nil {
		v := *i.ToAccountID
		cp.ToAccountID = &v
	}
	if i.Amount != nil {
		v := *i.Amount
		cp.Amount = &v
	}
	return &cp
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	cp := *t
	if t.FromAccountID != nil {
		v := *t.FromAccountID
		cp.FromAccountID = &v
	}
	if t.ToAccountID != nil {
		v := *t.ToAccountID
		cp.ToAccountID = &v
	}
	if t.IntentID != nil {
		v := *t.IntentID
		cp.IntentID = &v
	}
	cp.Details = append([]byte(nil), t.Details...)
	return &cp
}

func cloneFlow(f *domain.ScreenFlow) *domain.ScreenFlow {
	cp := *f
	cp.Steps = append([]domain.FlowStep(nil), f.Steps...)
	return &cp
}
