package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"hisaab/internal/core"
	"hisaab/internal/events"
	"hisaab/internal/log"
	"hisaab/internal/storage"
)

// LoanInput holds the metadata of a loan or credit-card account. The received
// and paid totals only move through RecordReceived and RecordPaid.
type LoanInput struct {
	Type          core.AccountType
	Name          string
	InitialAmount decimal.Decimal
	Description   string
	OpenedOn      core.Date
}

type LoanService struct {
	store storage.LoanStore
	deps
}

func NewLoanService(store storage.LoanStore, opts ...Option) *LoanService {
	return &LoanService{store: store, deps: newDeps(log.ComponentLoan, opts)}
}

func (in LoanInput) apply(a *core.LoanAccount) {
	a.Type = in.Type
	a.Name = strings.TrimSpace(in.Name)
	a.InitialAmount = core.RoundAmount(in.InitialAmount)
	a.Description = strings.TrimSpace(in.Description)
	a.OpenedOn = in.OpenedOn
}

func (s *LoanService) Create(ctx context.Context, owner string, in LoanInput) (core.LoanAccount, error) {
	now := s.now().UTC()
	a := core.LoanAccount{
		ID:             s.newID(),
		Owner:          owner,
		AmountReceived: decimal.Zero,
		AmountPaid:     decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	in.apply(&a)
	if a.OpenedOn.IsZero() {
		a.OpenedOn = core.DateOf(now, s.loc)
	}
	if err := a.Validate(); err != nil {
		return core.LoanAccount{}, invalid(err)
	}
	if err := s.store.CreateLoan(ctx, a); err != nil {
		return core.LoanAccount{}, fmt.Errorf("save loan account: %w", err)
	}
	s.logger.InfoContext(ctx, "Loan account created",
		log.NewFields().WithUser(owner).WithAccount(a.ID, string(a.Type)).ToSlice()...)
	s.notify(ctx, owner, events.EntityLoan, events.OpCreated, a.ID)
	return a, nil
}

// Update replaces the account metadata and keeps the movement totals.
func (s *LoanService) Update(ctx context.Context, owner, id string, in LoanInput) (core.LoanAccount, error) {
	return s.mutate(ctx, owner, id, log.OpUpdate, func(a *core.LoanAccount) error {
		openedOn := a.OpenedOn
		in.apply(a)
		if a.OpenedOn.IsZero() {
			a.OpenedOn = openedOn
		}
		return nil
	})
}

// RecordReceived adds amount to what the counterparty has handed back.
func (s *LoanService) RecordReceived(ctx context.Context, owner, id string, amount decimal.Decimal) (core.LoanAccount, error) {
	return s.mutate(ctx, owner, id, log.OpIncrement, func(a *core.LoanAccount) error {
		return a.RecordReceived(core.RoundAmount(amount))
	})
}

// RecordPaid adds amount to what the owner has paid out on the account.
func (s *LoanService) RecordPaid(ctx context.Context, owner, id string, amount decimal.Decimal) (core.LoanAccount, error) {
	return s.mutate(ctx, owner, id, log.OpIncrement, func(a *core.LoanAccount) error {
		return a.RecordPaid(core.RoundAmount(amount))
	})
}

func (s *LoanService) mutate(ctx context.Context, owner, id, op string, fn func(*core.LoanAccount) error) (core.LoanAccount, error) {
	updated, err := s.store.UpdateLoan(ctx, id, func(a *core.LoanAccount) error {
		if a.Owner != owner {
			return ErrForbidden
		}
		if err := fn(a); err != nil {
			return invalid(err)
		}
		a.UpdatedAt = s.now().UTC()
		return invalid(a.Validate())
	})
	if err != nil {
		return core.LoanAccount{}, fmt.Errorf("loan account %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Loan account updated",
		log.NewFields().WithOperation(op).WithUser(owner).WithAccount(id, string(updated.Type)).ToSlice()...)
	s.notify(ctx, owner, events.EntityLoan, events.OpUpdated, id)
	return updated, nil
}

func (s *LoanService) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.DeleteLoan(ctx, id); err != nil {
		return fmt.Errorf("delete loan account %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Loan account deleted", log.FieldUserID, owner, log.FieldAccountID, id)
	s.notify(ctx, owner, events.EntityLoan, events.OpDeleted, id)
	return nil
}

func (s *LoanService) Get(ctx context.Context, owner, id string) (core.LoanAccount, error) {
	a, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return core.LoanAccount{}, fmt.Errorf("loan account %s: %w", id, err)
	}
	if a.Owner != owner {
		return core.LoanAccount{}, ErrForbidden
	}
	return a, nil
}

func (s *LoanService) List(ctx context.Context, owner string) ([]core.LoanAccount, error) {
	accounts, err := s.store.ListLoans(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list loan accounts: %w", err)
	}
	return accounts, nil
}
