// Package storetest holds the behaviour every storage.Store must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"hisaab/internal/core"
	"hisaab/internal/storage"

	"github.com/shopspring/decimal"
)

// Run exercises s through the storage ports. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("list filter", func(t *testing.T) { testListFilter(t, newStore(t)) })
	t.Run("loans", func(t *testing.T) { testLoans(t, newStore(t)) })
}

var created = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := core.User{ID: "u1", Email: "Asha@Example.com", PasswordHash: "hash", CreatedAt: created}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() = %v", err)
	}
	if err := s.CreateUser(ctx, core.User{ID: "u2", Email: "asha@example.com", PasswordHash: "x", CreatedAt: created}); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate email: err = %v, want ErrDuplicate", err)
	}
	got, err := s.GetUserByEmail(ctx, "ASHA@example.com")
	if err != nil || got.ID != "u1" || got.Email != "asha@example.com" {
		t.Fatalf("GetUserByEmail() = %+v, %v", got, err)
	}
	if _, err := s.GetUserByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetUserByID(missing) = %v", err)
	}
}

func testTransactions(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tx := core.Transaction{
		ID:            "t1",
		Owner:         "u1",
		Amount:        amount("12.50"),
		Kind:          core.Debit,
		OccurredOn:    core.NewDate(2024, 1, 10),
		OccurredAt:    core.NewTimeOfDay(9, 30, 0),
		Description:   "tea",
		PaymentMethod: core.MethodCash,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction() = %v", err)
	}
	if err := s.CreateTransaction(ctx, tx); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate id: err = %v", err)
	}

	got, err := s.GetTransaction(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTransaction() = %v", err)
	}
	if !got.Amount.Equal(tx.Amount) || got.Kind != tx.Kind || got.OccurredOn.Compare(tx.OccurredOn) != 0 ||
		got.OccurredAt.String() != "09:30" || got.PaymentMethod != core.MethodCash || got.Description != "tea" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	tx.Amount = amount("15")
	tx.Kind = core.Credit
	tx.OccurredAt = core.TimeOfDay{}
	tx.PaymentMethod = ""
	tx.UpdatedAt = created.Add(time.Hour)
	if err := s.ReplaceTransaction(ctx, tx); err != nil {
		t.Fatalf("ReplaceTransaction() = %v", err)
	}
	got, _ = s.GetTransaction(ctx, "t1")
	if !got.Amount.Equal(amount("15")) || got.Kind != core.Credit || got.OccurredAt.Valid() || got.PaymentMethod != "" {
		t.Fatalf("replace not applied: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt changed on replace: %v", got.CreatedAt)
	}

	missing := tx
	missing.ID = "nope"
	if err := s.ReplaceTransaction(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ReplaceTransaction(missing) = %v", err)
	}
	if err := s.DeleteTransaction(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTransaction() = %v", err)
	}
	if err := s.DeleteTransaction(ctx, "t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete = %v", err)
	}
	if _, err := s.GetTransaction(ctx, "t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetTransaction after delete = %v", err)
	}
}

func testListFilter(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seed := []core.Transaction{
		{ID: "a", Owner: "u1", Amount: amount("1"), Kind: core.Credit, OccurredOn: core.NewDate(2024, 1, 5), PaymentMethod: core.MethodCash},
		{ID: "b", Owner: "u1", Amount: amount("2"), Kind: core.Debit, OccurredOn: core.NewDate(2024, 1, 10)},
		{ID: "c", Owner: "u1", Amount: amount("3"), Kind: core.Credit, OccurredOn: core.NewDate(2024, 1, 10), OccurredAt: core.NewTimeOfDay(9, 0, 0), PaymentMethod: core.MethodGPay},
		{ID: "d", Owner: "u1", Amount: amount("4"), Kind: core.Debit, OccurredOn: core.NewDate(2024, 2, 1), PaymentMethod: core.MethodCash},
		{ID: "z", Owner: "u2", Amount: amount("9"), Kind: core.Debit, OccurredOn: core.NewDate(2024, 1, 10)},
	}
	for _, tx := range seed {
		tx.CreatedAt, tx.UpdatedAt = created, created
		if err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("seed %s: %v", tx.ID, err)
		}
	}

	tests := []struct {
		name string
		f    storage.ListFilter
		want []string
	}{
		{"owner scoped, newest first", storage.ListFilter{}, []string{"d", "c", "b", "a"}},
		{"date range inclusive", storage.ListFilter{From: core.NewDate(2024, 1, 5), To: core.NewDate(2024, 1, 10)}, []string{"c", "b", "a"}},
		{"from only", storage.ListFilter{From: core.NewDate(2024, 1, 6)}, []string{"d", "c", "b"}},
		{"kind", storage.ListFilter{Kind: core.Debit}, []string{"d", "b"}},
		{"method", storage.ListFilter{Method: "Cash"}, []string{"d", "a"}},
		{"not specified", storage.ListFilter{Method: core.NotSpecified}, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, "u1", tt.f)
			if err != nil {
				t.Fatalf("ListTransactions() = %v", err)
			}
			ids := make([]string, len(got))
			for i, tx := range got {
				ids[i] = tx.ID
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("ids = %v, want %v", ids, tt.want)
				}
			}
		})
	}

	empty, err := s.ListTransactions(ctx, "nobody", storage.ListFilter{})
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("unknown owner = %#v, %v; want empty non-nil slice", empty, err)
	}
}

func testLoans(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := core.LoanAccount{
		ID:            "l1",
		Owner:         "u1",
		Type:          core.LoanTaken,
		Name:          "Ravi",
		InitialAmount: amount("1000"),
		OpenedOn:      core.NewDate(2024, 1, 1),
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	if err := s.CreateLoan(ctx, a); err != nil {
		t.Fatalf("CreateLoan() = %v", err)
	}

	updated, err := s.UpdateLoan(ctx, "l1", func(acct *core.LoanAccount) error {
		return acct.RecordReceived(amount("200"))
	})
	if err != nil || !updated.AmountReceived.Equal(amount("200")) {
		t.Fatalf("UpdateLoan(received) = %+v, %v", updated, err)
	}
	if _, err := s.UpdateLoan(ctx, "l1", func(acct *core.LoanAccount) error {
		return acct.RecordPaid(amount("300"))
	}); err != nil {
		t.Fatalf("UpdateLoan(paid) = %v", err)
	}

	boom := errors.New("boom")
	if _, err := s.UpdateLoan(ctx, "l1", func(acct *core.LoanAccount) error {
		acct.AmountPaid = amount("999999")
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("UpdateLoan(failing fn) = %v", err)
	}

	got, err := s.GetLoan(ctx, "l1")
	if err != nil {
		t.Fatalf("GetLoan() = %v", err)
	}
	if !got.AmountReceived.Equal(amount("200")) || !got.AmountPaid.Equal(amount("300")) {
		t.Fatalf("amounts = received %s paid %s", got.AmountReceived, got.AmountPaid)
	}
	if got.OpenedOn.Compare(core.NewDate(2024, 1, 1)) != 0 {
		t.Fatalf("OpenedOn = %s", got.OpenedOn)
	}

	if _, err := s.UpdateLoan(ctx, "missing", func(*core.LoanAccount) error { return nil }); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("UpdateLoan(missing) = %v", err)
	}

	list, err := s.ListLoans(ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListLoans() = %v, %v", list, err)
	}
	if other, _ := s.ListLoans(ctx, "u2"); len(other) != 0 {
		t.Fatalf("ListLoans(u2) leaked %v", other)
	}

	if err := s.DeleteLoan(ctx, "l1"); err != nil {
		t.Fatalf("DeleteLoan() = %v", err)
	}
	if _, err := s.GetLoan(ctx, "l1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetLoan after delete = %v", err)
	}
}
