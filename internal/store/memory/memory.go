// Package memory is the default Store implementation: mutex-guarded maps
// seeded at startup. It backs local development and the unit tests, including
// the concurrency properties of the limit tracker and executor.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/store"
)

type Store struct {
	mu sync.RWMutex

	customers map[uuid.UUID]*domain.Customer
	cards     map[uuid.UUID]*domain.Card
	cardByPAN map[string]uuid.UUID
	accounts  map[uuid.UUID]*domain.Account
	sessions  map[uuid.UUID]*domain.Session
	intents   map[uuid.UUID]*domain.TransactionIntent
	txns      map[uuid.UUID]*domain.Transaction
	txnOrder  []uuid.UUID
	flows     map[uuid.UUID]*domain.ScreenFlow
	messages  map[uuid.UUID][]domain.ConversationMessage
	receipts  map[uuid.UUID]*domain.Receipt
	limits    map[limitKey]*domain.DailyLimitRecord
}

type limitKey struct {
	accountID uuid.UUID
	date      string
}

func New() *Store {
	return &Store{
		customers: make(map[uuid.UUID]*domain.Customer),
		cards:     make(map[uuid.UUID]*domain.Card),
		cardByPAN: make(map[string]uuid.UUID),
		accounts:  make(map[uuid.UUID]*domain.Account),
		sessions:  make(map[uuid.UUID]*domain.Session),
		intents:   make(map[uuid.UUID]*domain.TransactionIntent),
		txns:      make(map[uuid.UUID]*domain.Transaction),
		flows:     make(map[uuid.UUID]*domain.ScreenFlow),
		messages:  make(map[uuid.UUID][]domain.ConversationMessage),
		receipts:  make(map[uuid.UUID]*domain.Receipt),
		limits:    make(map[limitKey]*domain.DailyLimitRecord),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Close() error { return nil }

func (s *Store) CreateCustomer(_ context.Context, c *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = cloneCustomer(c)
	return nil
}

func (s *Store) CustomerByID(_ context.Context, id uuid.UUID) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("CustomerByID: %w", domain.ErrNotFound)
	}
	return cloneCustomer(c), nil
}

func (s *Store) CreateCard(_ context.Context, c *domain.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[c.ID] = cloneCard(c)
	s.cardByPAN[c.PAN] = c.ID
	return nil
}

func (s *Store) CardByPAN(_ context.Context, pan string) (*domain.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.cardByPAN[pan]
	if !ok {
		return nil, fmt.Errorf("CardByPAN: %w", domain.ErrNotFound)
	}
	return cloneCard(s.cards[id]), nil
}

func (s *Store) CreateAccount(_ context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *Store) AccountByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("AccountByID: %w", domain.ErrNotFound)
	}
	return cloneAccount(a), nil
}

func (s *Store) AccountsByCustomer(_ context.Context, customerID uuid.UUID) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Account
	for _, a := range s.accounts {
		if a.CustomerID == customerID {
			out = append(out, *cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number < out[j].Number
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateSession(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (s *Store) SessionByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("SessionByID: %w", domain.ErrNotFound)
	}
	return cloneSession(sess), nil
}

func (s *Store) UpdateSession(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return fmt.Errorf("UpdateSession: %w", domain.ErrNotFound)
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (s *Store) CreateIntent(_ context.Context, i *domain.TransactionIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[i.ID] = cloneIntent(i)
	return nil
}

func (s *Store) IntentByID(_ context.Context, id uuid.UUID) (*domain.TransactionIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.intents[id]
	if !ok {
		return nil, fmt.Errorf("IntentByID: %w", domain.ErrNotFound)
	}
	return cloneIntent(i), nil
}

func (s *Store) UpdateIntent(_ context.Context, i *domain.TransactionIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[i.ID]; !ok {
		return fmt.Errorf("UpdateIntent: %w", domain.ErrNotFound)
	}
	s.intents[i.ID] = cloneIntent(i)
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, t *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putTransaction(t)
	return nil
}

// putTransaction requires s.mu held for writing.
func (s *Store) putTransaction(t *domain.Transaction) {
	s.txns[t.ID] = cloneTransaction(t)
	s.txnOrder = append(s.txnOrder, t.ID)
}

func (s *Store) TransactionByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txns[id]
	if !ok {
		return nil, fmt.Errorf("TransactionByID: %w", domain.ErrNotFound)
	}
	return cloneTransaction(t), nil
}

func (s *Store) TransactionsByAccount(_ context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Transaction
	for i := len(s.txnOrder) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		t := s.txns[s.txnOrder[i]]
		if (t.FromAccountID != nil && *t.FromAccountID == accountID) ||
			(t.ToAccountID != nil && *t.ToAccountID == accountID) {
			out = append(out, *cloneTransaction(t))
		}
	}
	return out, nil
}

func (s *Store) CreateFlow(_ context.Context, f *domain.ScreenFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[f.ID] = cloneFlow(f)
	return nil
}

func (s *Store) FlowByID(_ context.Context, id uuid.UUID) (*domain.ScreenFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flows[id]
	if !ok {
		return nil, fmt.Errorf("FlowByID: %w", domain.ErrNotFound)
	}
	return cloneFlow(f), nil
}

func (s *Store) FlowByIntent(_ context.Context, intentID uuid.UUID) (*domain.ScreenFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.ScreenFlow
	for _, f := range s.flows {
		if f.IntentID != intentID {
			continue
		}
		if latest == nil || f.CreatedAt.After(latest.CreatedAt) {
			latest = f
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("FlowByIntent: %w", domain.ErrNotFound)
	}
	return cloneFlow(latest), nil
}

func (s *Store) UpdateFlow(_ context.Context, f *domain.ScreenFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flows[f.ID]; !ok {
		return fmt.Errorf("UpdateFlow: %w", domain.ErrNotFound)
	}
	s.flows[f.ID] = cloneFlow(f)
	return nil
}

func (s *Store) AppendMessage(_ context.Context, m *domain.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.SessionID] = append(s.messages[m.SessionID], *m)
	return nil
}

func (s *Store) RecentMessages(_ context.Context, sessionID uuid.UUID, limit int) ([]domain.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.ConversationMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *Store) CreateReceipt(_ context.Context, r *domain.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.receipts[r.ID] = &cp
	return nil
}

func (s *Store) LimitRecord(_ context.Context, accountID uuid.UUID, date string) (*domain.DailyLimitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.limits[limitKey{accountID, date}]
	if !ok {
		return domain.NewDailyLimitRecord(accountID, date), nil
	}
	cp := *rec
	return &cp, nil
}

// Atomic holds the write lock for the whole section: concurrent atomic units
// on any account serialize, and staged writes apply only if fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}
