package ledger

import (
	"cmp"
	"slices"
	"strings"

	"hisaab/internal/core"

	"github.com/shopspring/decimal"
)

// LedgerFilter narrows ComputeLedger. Empty fields do not filter.
type LedgerFilter struct {
	Kind   core.Kind
	Method string // matched against PaymentMethod.Label()
}

// Entry is a transaction annotated with the balance after it was applied.
type Entry struct {
	core.Transaction
	RunningBalance decimal.Decimal
}

// ComputeLedger returns the filtered transactions newest first, each carrying
// the cumulative signed sum of every filtered transaction up to and including
// it in chronological order.
func ComputeLedger(txs []core.Transaction, f LedgerFilter) []Entry {
	filtered := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Kind != "" && tx.Kind != f.Kind {
			continue
		}
		if !matchesMethod(tx, f.Method) {
			continue
		}
		filtered = append(filtered, tx)
	}
	sortChronological(filtered)

	entries := make([]Entry, len(filtered))
	running := decimal.Zero
	for i, tx := range filtered {
		running = running.Add(tx.Kind.Signed(tx.Amount))
		entries[i] = Entry{Transaction: tx, RunningBalance: running}
	}

	// Display order is the exact reverse of accumulation order.
	slices.Reverse(entries)
	return entries
}

// sortChronological orders by date, then time of day (unset = midnight),
// then id so that the order is total.
func sortChronological(txs []core.Transaction) {
	slices.SortFunc(txs, compareChronological)
}

func compareChronological(a, b core.Transaction) int {
	if c := a.OccurredOn.Compare(b.OccurredOn); c != 0 {
		return c
	}
	if c := cmp.Compare(a.OccurredAt.Seconds(), b.OccurredAt.Seconds()); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
