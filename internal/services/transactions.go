package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hisaab/internal/core"
	"hisaab/internal/events"
	"hisaab/internal/log"
	"hisaab/internal/storage"
)

// TransactionInput is what a caller may set on a transaction. When Timestamp
// is non-zero it wins over OccurredOn and OccurredAt and is converted to a
// wall-clock date and time in the service's location.
type TransactionInput struct {
	Amount        decimal.Decimal
	Kind          core.Kind
	OccurredOn    core.Date
	OccurredAt    core.TimeOfDay
	Timestamp     time.Time
	Description   string
	PaymentMethod core.PaymentMethod
}

// TransactionService is the write boundary for transactions: it validates,
// persists and then announces every change.
type TransactionService struct {
	store storage.TransactionStore
	deps
}

func NewTransactionService(store storage.TransactionStore, opts ...Option) *TransactionService {
	return &TransactionService{store: store, deps: newDeps(log.ComponentTransaction, opts)}
}

func (s *TransactionService) build(owner string, in TransactionInput) (core.Transaction, error) {
	tx := core.Transaction{
		Owner:         owner,
		Amount:        core.RoundAmount(in.Amount),
		Kind:          in.Kind,
		OccurredOn:    in.OccurredOn,
		OccurredAt:    in.OccurredAt,
		Description:   strings.TrimSpace(in.Description),
		PaymentMethod: in.PaymentMethod,
	}
	if !in.Timestamp.IsZero() {
		tx.OccurredOn = core.DateOf(in.Timestamp, s.loc)
		tx.OccurredAt = core.TimeOfDayOf(in.Timestamp, s.loc)
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	return tx, nil
}

func (s *TransactionService) Create(ctx context.Context, owner string, in TransactionInput) (core.Transaction, error) {
	tx, err := s.build(owner, in)
	if err != nil {
		return core.Transaction{}, err
	}
	now := s.now().UTC()
	tx.ID = s.newID()
	tx.CreatedAt, tx.UpdatedAt = now, now

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.logSaved(ctx, log.OpCreate, tx)
	s.notify(ctx, owner, events.EntityTransaction, events.OpCreated, tx.ID)
	return tx, nil
}

// Update replaces every user-settable field of an existing transaction.
func (s *TransactionService) Update(ctx context.Context, owner, id string, in TransactionInput) (core.Transaction, error) {
	existing, err := s.Get(ctx, owner, id)
	if err != nil {
		return core.Transaction{}, err
	}
	tx, err := s.build(owner, in)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = existing.ID
	tx.CreatedAt = existing.CreatedAt
	tx.UpdatedAt = s.now().UTC()

	if err := s.store.ReplaceTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("replace transaction %s: %w", id, err)
	}
	s.logSaved(ctx, log.OpUpdate, tx)
	s.notify(ctx, owner, events.EntityTransaction, events.OpUpdated, tx.ID)
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldUserID, owner,
		log.FieldTransactionID, id)
	s.notify(ctx, owner, events.EntityTransaction, events.OpDeleted, id)
	return nil
}

// Get returns ErrNotFound for unknown ids and ErrForbidden for other owners' records.
func (s *TransactionService) Get(ctx context.Context, owner, id string) (core.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, err)
	}
	if tx.Owner != owner {
		return core.Transaction{}, ErrForbidden
	}
	return tx, nil
}

// List returns the owner's transactions newest first.
func (s *TransactionService) List(ctx context.Context, owner string, f storage.ListFilter) ([]core.Transaction, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.Compare(f.To) > 0 {
		return nil, invalid(fmt.Errorf("startDate %s is after endDate %s", f.From, f.To))
	}
	txs, err := s.store.ListTransactions(ctx, owner, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) logSaved(ctx context.Context, op string, tx core.Transaction) {
	fields := log.NewFields().
		WithOperation(op).
		WithUser(tx.Owner).
		WithTransaction(tx.ID, string(tx.Kind), tx.Amount.StringFixed(2), tx.PaymentMethod.Label(), tx.OccurredOn.String())
	s.logger.InfoContext(ctx, "Transaction saved", fields.ToSlice()...)
}
