package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Credit Kind = "credit"
	Debit  Kind = "debit"
)

const (
	LoanGiven  AccountType = "loan-given"
	LoanTaken  AccountType = "loan-taken"
	CreditCard AccountType = "credit-card"
)

const (
	maxDescriptionLen = 200
	maxNameLen        = 100
)

type (
	// Kind is the direction of a transaction. Credit increases the balance,
	// Debit decreases it.
	Kind string

	// AccountType tags a loan or credit-card sub-account.
	AccountType string

	Transaction struct {
		ID            string
		Owner         string
		Amount        decimal.Decimal
		Kind          Kind
		OccurredOn    Date
		OccurredAt    TimeOfDay
		Description   string
		PaymentMethod PaymentMethod
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	LoanAccount struct {
		ID             string
		Owner          string
		Type           AccountType
		Name           string // counterparty or card name
		InitialAmount  decimal.Decimal
		AmountReceived decimal.Decimal
		AmountPaid     decimal.Decimal
		Description    string
		OpenedOn       Date
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	User struct {
		ID           string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrNegativeAmount     = errors.New("amount cannot be negative")
	ErrAmountTooLarge     = errors.New("amount cannot exceed 999,999,999,999.99")
	ErrMissingDate        = errors.New("date is required")
	ErrInvalidKind        = errors.New("type must be credit or debit")
	ErrInvalidMethod      = errors.New("invalid payment method")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidAccountType = errors.New("account type must be loan-given, loan-taken or credit-card")
	ErrMissingName        = errors.New("name is required")
	ErrMissingOwner       = errors.New("owner is required")
)

// ParseKind accepts "credit" or "debit" in any case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Credit, Debit:
		return k, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) Valid() bool {
	return k == Credit || k == Debit
}

// Signed returns amount with the sign implied by k.
func (k Kind) Signed(amount decimal.Decimal) decimal.Decimal {
	if k == Debit {
		return amount.Neg()
	}
	return amount
}

func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(strings.ToLower(strings.TrimSpace(s))); t {
	case LoanGiven, LoanTaken, CreditCard:
		return t, nil
	default:
		return "", ErrInvalidAccountType
	}
}

func (t AccountType) Valid() bool {
	return t == LoanGiven || t == LoanTaken || t == CreditCard
}

// AccountTypes lists the sub-account types in display order.
func AccountTypes() []AccountType {
	return []AccountType{LoanGiven, LoanTaken, CreditCard}
}

// Validate checks a transaction at the write boundary. Aggregation code
// assumes every transaction it sees has passed this check.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Owner) == "" {
		return ErrMissingOwner
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Amount.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if t.OccurredOn.IsZero() {
		return ErrMissingDate
	}
	if err := t.OccurredOn.Validate(); err != nil {
		return err
	}
	if err := t.PaymentMethod.Validate(); err != nil {
		return err
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (a LoanAccount) Validate() error {
	if strings.TrimSpace(a.Owner) == "" {
		return ErrMissingOwner
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrMissingName
	}
	if len(a.Name) > maxNameLen {
		return fmt.Errorf("name too long (max %d characters)", maxNameLen)
	}
	for _, v := range []decimal.Decimal{a.InitialAmount, a.AmountReceived, a.AmountPaid} {
		if v.IsNegative() {
			return ErrNegativeAmount
		}
		if v.GreaterThan(MaxAmount) {
			return ErrAmountTooLarge
		}
	}
	if len(a.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if !a.OpenedOn.IsZero() {
		if err := a.OpenedOn.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RecordReceived adds delta to the received total.
func (a *LoanAccount) RecordReceived(delta decimal.Decimal) error {
	if !delta.IsPositive() {
		return ErrInvalidAmount
	}
	a.AmountReceived = a.AmountReceived.Add(delta)
	return nil
}

// RecordPaid adds delta to the paid total.
func (a *LoanAccount) RecordPaid(delta decimal.Decimal) error {
	if !delta.IsPositive() {
		return ErrInvalidAmount
	}
	a.AmountPaid = a.AmountPaid.Add(delta)
	return nil
}
