package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"hisaab/internal/core"
	"hisaab/internal/events"
	"hisaab/internal/storage/memory"
)

func TestLoanService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	svc := NewLoanService(memory.New(), testOptions(rec)...)

	a, err := svc.Create(ctx, "u1", LoanInput{Type: core.LoanGiven, Name: " Ravi ", InitialAmount: decimal.NewFromInt(1000)})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if a.Name != "Ravi" || !a.AmountPaid.IsZero() || !a.AmountReceived.IsZero() {
		t.Errorf("created = %+v", a)
	}
	if a.OpenedOn.String() != "2024-03-15" {
		t.Errorf("opened on = %s, want today", a.OpenedOn)
	}
	if c := rec.last(); c.Entity != events.EntityLoan || c.Op != events.OpCreated {
		t.Errorf("published %+v", c)
	}

	a, err = svc.RecordReceived(ctx, "u1", a.ID, decimal.RequireFromString("250.50"))
	if err != nil {
		t.Fatalf("RecordReceived() = %v", err)
	}
	a, err = svc.RecordPaid(ctx, "u1", a.ID, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("RecordPaid() = %v", err)
	}
	if !a.AmountReceived.Equal(decimal.RequireFromString("250.5")) || !a.AmountPaid.Equal(decimal.NewFromInt(100)) {
		t.Errorf("received/paid = %s/%s", a.AmountReceived, a.AmountPaid)
	}

	a, err = svc.Update(ctx, "u1", a.ID, LoanInput{Type: core.LoanGiven, Name: "Ravi K", InitialAmount: decimal.NewFromInt(1200)})
	if err != nil {
		t.Fatalf("Update() = %v", err)
	}
	if a.OpenedOn.String() != "2024-03-15" {
		t.Errorf("update dropped opened on: %s", a.OpenedOn)
	}
	if !a.AmountReceived.Equal(decimal.RequireFromString("250.5")) {
		t.Errorf("update reset received total: %s", a.AmountReceived)
	}

	if err := svc.Delete(ctx, "u1", a.ID); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if _, err := svc.Get(ctx, "u1", a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete = %v", err)
	}
}

func TestLoanService_Rejects(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := &recorder{}
	svc := NewLoanService(store, testOptions(rec)...)
	a, err := svc.Create(ctx, "u1", LoanInput{Type: core.CreditCard, Name: "Visa"})
	if err != nil {
		t.Fatal(err)
	}
	published := rec.count()

	tests := []struct {
		name string
		run  func() error
		want func(error) bool
	}{
		{"bad type", func() error {
			_, err := svc.Create(ctx, "u1", LoanInput{Type: "mortgage", Name: "x"})
			return err
		}, IsValidation},
		{"missing name", func() error {
			_, err := svc.Create(ctx, "u1", LoanInput{Type: core.LoanTaken, Name: "  "})
			return err
		}, IsValidation},
		{"non-positive delta", func() error {
			_, err := svc.RecordPaid(ctx, "u1", a.ID, decimal.Zero)
			return err
		}, IsValidation},
		{"other owner", func() error {
			_, err := svc.RecordReceived(ctx, "u2", a.ID, decimal.NewFromInt(5))
			return err
		}, func(err error) bool { return errors.Is(err, ErrForbidden) }},
		{"unknown id", func() error {
			_, err := svc.RecordReceived(ctx, "u1", "nope", decimal.NewFromInt(5))
			return err
		}, func(err error) bool { return errors.Is(err, ErrNotFound) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !tt.want(err) {
				t.Errorf("got %v", err)
			}
		})
	}

	if rec.count() != published {
		t.Errorf("rejected writes published %d changes", rec.count()-published)
	}
	stored, _ := store.GetLoan(ctx, a.ID)
	if !stored.AmountPaid.IsZero() || !stored.AmountReceived.IsZero() {
		t.Errorf("rejected movement was stored: %+v", stored)
	}
}
