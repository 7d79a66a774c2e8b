package storage

import (
	"context"
	"errors"

	"hisaab/internal/core"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// ListFilter narrows ListTransactions. Zero values do not filter. From and To
// are inclusive calendar dates.
type ListFilter struct {
	From   core.Date
	To     core.Date
	Kind   core.Kind
	Method string // PaymentMethod label; core.NotSpecified selects the empty method
}

// Matches reports whether tx passes f. Backends without query pushdown use it.
func (f ListFilter) Matches(tx core.Transaction) bool {
	if !f.From.IsZero() && tx.OccurredOn.Compare(f.From) < 0 {
		return false
	}
	if !f.To.IsZero() && tx.OccurredOn.Compare(f.To) > 0 {
		return false
	}
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if f.Method != "" && tx.PaymentMethod.Label() != f.Method {
		return false
	}
	return true
}

// Ports implemented by every backend.
type (
	TransactionStore interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) error
		// ReplaceTransaction overwrites every mutable field of an existing record.
		ReplaceTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// ListTransactions returns an owner's transactions newest first.
		ListTransactions(ctx context.Context, owner string, f ListFilter) ([]core.Transaction, error)
	}

	LoanStore interface {
		CreateLoan(ctx context.Context, a core.LoanAccount) error
		// UpdateLoan loads the account, applies fn and saves the result
		// atomically. If fn returns an error nothing is written.
		UpdateLoan(ctx context.Context, id string, fn func(*core.LoanAccount) error) (core.LoanAccount, error)
		DeleteLoan(ctx context.Context, id string) error
		GetLoan(ctx context.Context, id string) (core.LoanAccount, error)
		ListLoans(ctx context.Context, owner string) ([]core.LoanAccount, error)
	}

	UserStore interface {
		CreateUser(ctx context.Context, u core.User) error
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		GetUserByID(ctx context.Context, id string) (core.User, error)
	}

	Store interface {
		TransactionStore
		LoanStore
		UserStore
		Ping(ctx context.Context) error
		Close() error
	}
)
