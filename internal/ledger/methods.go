package ledger

import (
	"cmp"
	"slices"
	"strings"

	"hisaab/internal/core"

	"github.com/shopspring/decimal"
)

// Palette is the chart color cycle used by AssignColors.
var Palette = []string{"#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6"}

// MethodStat summarizes how a payment method has been used.
type MethodStat struct {
	Name     string
	Count    int
	Total    decimal.Decimal // credits and debits combined
	LastUsed core.Date
	Color    string
}

// MethodBreakdown splits a method's usage by direction for income/expense charts.
type MethodBreakdown struct {
	Name   string
	Count  int
	Credit decimal.Decimal
	Debit  decimal.Decimal
	Color  string
}

// AssignColors maps each name to a palette entry in first-seen order,
// wrapping around when there are more names than colors.
func AssignColors(names []string) map[string]string {
	colors := make(map[string]string, len(names))
	for _, n := range names {
		if _, ok := colors[n]; ok {
			continue
		}
		colors[n] = Palette[len(colors)%len(Palette)]
	}
	return colors
}

// ComputeMethodStats groups transactions by payment method label, ordered by
// usage count descending and then by name.
func ComputeMethodStats(txs []core.Transaction) []MethodStat {
	colors := AssignColors(firstSeenMethods(txs))
	byName := make(map[string]*MethodStat)
	for _, tx := range txs {
		name := tx.PaymentMethod.Label()
		s, ok := byName[name]
		if !ok {
			s = &MethodStat{Name: name, Total: decimal.Zero, Color: colors[name]}
			byName[name] = s
		}
		s.Count++
		s.Total = s.Total.Add(tx.Amount)
		if tx.OccurredOn.Compare(s.LastUsed) > 0 {
			s.LastUsed = tx.OccurredOn
		}
	}

	stats := make([]MethodStat, 0, len(byName))
	for _, s := range byName {
		stats = append(stats, *s)
	}
	slices.SortFunc(stats, func(a, b MethodStat) int {
		return byCountThenName(a.Count, b.Count, a.Name, b.Name)
	})
	return stats
}

// ComputeMethodBreakdown is ComputeMethodStats restricted to p with credit
// and debit totals kept apart. Colors are assigned over the period's
// transactions only.
func ComputeMethodBreakdown(txs []core.Transaction, p Period) []MethodBreakdown {
	inPeriod := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if p.Contains(tx.OccurredOn) {
			inPeriod = append(inPeriod, tx)
		}
	}
	colors := AssignColors(firstSeenMethods(inPeriod))

	byName := make(map[string]*MethodBreakdown)
	for _, tx := range inPeriod {
		name := tx.PaymentMethod.Label()
		b, ok := byName[name]
		if !ok {
			b = &MethodBreakdown{Name: name, Credit: decimal.Zero, Debit: decimal.Zero, Color: colors[name]}
			byName[name] = b
		}
		b.Count++
		switch tx.Kind {
		case core.Credit:
			b.Credit = b.Credit.Add(tx.Amount)
		case core.Debit:
			b.Debit = b.Debit.Add(tx.Amount)
		}
	}

	out := make([]MethodBreakdown, 0, len(byName))
	for _, b := range byName {
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b MethodBreakdown) int {
		return byCountThenName(a.Count, b.Count, a.Name, b.Name)
	})
	return out
}

// firstSeenMethods lists method labels in the order they were first used,
// so color assignment does not depend on how the input was ordered.
func firstSeenMethods(txs []core.Transaction) []string {
	sorted := slices.Clone(txs)
	sortChronological(sorted)
	names := make([]string, 0, len(sorted))
	for _, tx := range sorted {
		names = append(names, tx.PaymentMethod.Label())
	}
	return names
}

func byCountThenName(countA, countB int, nameA, nameB string) int {
	if c := cmp.Compare(countB, countA); c != 0 {
		return c
	}
	return strings.Compare(nameA, nameB)
}
