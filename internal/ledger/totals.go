// Package ledger derives read models from an owner's transactions and loan
// accounts: period totals, a running-balance ledger, payment-method usage and
// sub-account balances.
//
// Every function here is a pure function of its arguments. Inputs may arrive
// in any order, are never modified, and empty inputs produce zero values.
// Validation happens before records are stored, so nothing in this package
// returns an error.
package ledger

import (
	"time"

	"hisaab/internal/core"

	"github.com/shopspring/decimal"
)

// Period selects a calendar month. The zero Period selects all time.
type Period struct {
	Year  int
	Month int // 1-12
}

// CurrentPeriod is the month containing now on a wall clock in loc.
func CurrentPeriod(now time.Time, loc *time.Location) Period {
	d := core.DateOf(now, loc)
	return Period{Year: d.Year(), Month: d.Month()}
}

func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// Contains matches on the stored calendar fields of d.
func (p Period) Contains(d core.Date) bool {
	if p.IsZero() {
		return true
	}
	return d.Year() == p.Year && d.Month() == p.Month
}

// TotalsQuery scopes ComputeTotals. An empty Method means every method;
// use core.NotSpecified to select transactions without one.
type TotalsQuery struct {
	Period Period
	Method string
}

// Totals holds the credit and debit sums for the queried period and the
// all-time balance under the same method filter.
type Totals struct {
	Credit  decimal.Decimal
	Debit   decimal.Decimal
	Balance decimal.Decimal
}

// ComputeTotals sums credits and debits within q.Period. Balance always
// covers all time, so for the zero Period Balance == Credit - Debit.
func ComputeTotals(txs []core.Transaction, q TotalsQuery) Totals {
	var (
		credit, debit       = decimal.Zero, decimal.Zero
		allCredit, allDebit = decimal.Zero, decimal.Zero
	)
	for _, tx := range txs {
		if !matchesMethod(tx, q.Method) {
			continue
		}
		inPeriod := q.Period.Contains(tx.OccurredOn)
		switch tx.Kind {
		case core.Credit:
			allCredit = allCredit.Add(tx.Amount)
			if inPeriod {
				credit = credit.Add(tx.Amount)
			}
		case core.Debit:
			allDebit = allDebit.Add(tx.Amount)
			if inPeriod {
				debit = debit.Add(tx.Amount)
			}
		}
	}
	return Totals{
		Credit:  credit,
		Debit:   debit,
		Balance: allCredit.Sub(allDebit),
	}
}

func matchesMethod(tx core.Transaction, label string) bool {
	return label == "" || tx.PaymentMethod.Label() == label
}
