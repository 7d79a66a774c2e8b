package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"hisaab/internal/core"
	"hisaab/internal/storage"
)

// Store keeps every record in process memory. It is safe for concurrent use
// and loses everything on restart.
type Store struct {
	mu    sync.Mutex
	users map[string]core.User
	txs   map[string]core.Transaction
	loans map[string]core.LoanAccount
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users: make(map[string]core.User),
		txs:   make(map[string]core.Transaction),
		loans: make(map[string]core.LoanAccount),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error                { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	if _, ok := s.users[u.ID]; ok {
		return storage.ErrDuplicate
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return storage.ErrDuplicate
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, storage.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.ID]; ok {
		return storage.ErrDuplicate
	}
	s.txs[tx.ID] = tx
	return nil
}

func (s *Store) ReplaceTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.txs[tx.ID]
	if !ok {
		return storage.ErrNotFound
	}
	tx.Owner = old.Owner
	tx.CreatedAt = old.CreatedAt
	s.txs[tx.ID] = tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, owner string, f storage.ListFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	out := []core.Transaction{}
	for _, tx := range s.txs {
		if tx.Owner == owner && f.Matches(tx) {
			out = append(out, tx)
		}
	}
	s.mu.Unlock()

	// newest first, same as the SQL backend
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := b.OccurredOn.Compare(a.OccurredOn); c != 0 {
			return c
		}
		if c := cmp.Compare(b.OccurredAt.Seconds(), a.OccurredAt.Seconds()); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) CreateLoan(_ context.Context, a core.LoanAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loans[a.ID]; ok {
		return storage.ErrDuplicate
	}
	s.loans[a.ID] = a
	return nil
}

func (s *Store) UpdateLoan(_ context.Context, id string, fn func(*core.LoanAccount) error) (core.LoanAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.loans[id]
	if !ok {
		return core.LoanAccount{}, storage.ErrNotFound
	}
	if err := fn(&a); err != nil {
		return core.LoanAccount{}, err
	}
	s.loans[id] = a
	return a, nil
}

func (s *Store) DeleteLoan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loans[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.loans, id)
	return nil
}

func (s *Store) GetLoan(_ context.Context, id string) (core.LoanAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.loans[id]
	if !ok {
		return core.LoanAccount{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListLoans(_ context.Context, owner string) ([]core.LoanAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.LoanAccount{}
	for _, a := range s.loans {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(x, y core.LoanAccount) int {
		if c := y.CreatedAt.Compare(x.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(x.ID, y.ID)
	})
	return out, nil
}
