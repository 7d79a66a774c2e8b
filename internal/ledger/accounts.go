package ledger

import (
	"slices"
	"strings"

	"hisaab/internal/core"

	"github.com/shopspring/decimal"
)

// ComputeAccountBalance returns the outstanding balance of a sub-account.
//
//	loan-taken:  initial + received - paid
//	loan-given:  initial + paid - received
//	credit-card: initial + received - paid
//
// For a loan given, money paid out to the counterparty adds to what they owe
// and money received back reduces it. Unknown types have a zero balance.
func ComputeAccountBalance(a core.LoanAccount) decimal.Decimal {
	switch a.Type {
	case core.LoanTaken, core.CreditCard:
		return a.InitialAmount.Add(a.AmountReceived).Sub(a.AmountPaid)
	case core.LoanGiven:
		return a.InitialAmount.Add(a.AmountPaid).Sub(a.AmountReceived)
	default:
		return decimal.Zero
	}
}

// Sections are the per-method account totals shown on the accounts page.
type Sections struct {
	Cash       decimal.Decimal
	Account    decimal.Decimal
	CreditCard decimal.Decimal
}

// ComputeSectionTotals sums transactions whose method is exactly Cash,
// Account or Credit Card. Cash and Account are assets (credits add); the
// credit card is a liability, so debits add and credits subtract.
func ComputeSectionTotals(txs []core.Transaction) Sections {
	s := Sections{Cash: decimal.Zero, Account: decimal.Zero, CreditCard: decimal.Zero}
	for _, tx := range txs {
		signed := tx.Kind.Signed(tx.Amount)
		switch tx.PaymentMethod {
		case core.MethodCash:
			s.Cash = s.Cash.Add(signed)
		case core.MethodAccount:
			s.Account = s.Account.Add(signed)
		case core.MethodCreditCard:
			s.CreditCard = s.CreditCard.Sub(signed)
		}
	}
	return s
}

// AccountBalance pairs a sub-account with its computed balance.
type AccountBalance struct {
	core.LoanAccount
	Balance decimal.Decimal
}

// AccountGroup collects the sub-accounts of one type.
type AccountGroup struct {
	Type     core.AccountType
	Accounts []AccountBalance
	Total    decimal.Decimal
}

// SummarizeAccounts returns one group per account type, in core.AccountTypes
// order, even when a group is empty. Accounts inside a group are ordered by
// opening date, newest first, then by id.
func SummarizeAccounts(accounts []core.LoanAccount) []AccountGroup {
	groups := make([]AccountGroup, 0, len(core.AccountTypes()))
	for _, t := range core.AccountTypes() {
		g := AccountGroup{Type: t, Accounts: []AccountBalance{}, Total: decimal.Zero}
		for _, a := range accounts {
			if a.Type != t {
				continue
			}
			bal := ComputeAccountBalance(a)
			g.Accounts = append(g.Accounts, AccountBalance{LoanAccount: a, Balance: bal})
			g.Total = g.Total.Add(bal)
		}
		slices.SortFunc(g.Accounts, func(x, y AccountBalance) int {
			if c := y.OpenedOn.Compare(x.OpenedOn); c != 0 {
				return c
			}
			return strings.Compare(x.ID, y.ID)
		})
		groups = append(groups, g)
	}
	return groups
}
