// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals held at two decimal places. Parsing accepts
// both dot and comma separators and rounds half-up.
package core

import (
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for display when no currency is configured.
const DefaultCurrency = "INR"

// MaxAmount is the largest amount a single record may hold. Sums of many
// records can still exceed it, so Cents and FormatAmount stay total.
var MaxAmount = decimal.RequireFromString("999999999999.99")

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// ParseAmount converts a decimal string to a positive amount rounded to cents.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35 (half-up)
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = RoundAmount(d)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.GreaterThan(MaxAmount) {
		return decimal.Zero, ErrAmountTooLarge
	}
	return d, nil
}

// RoundAmount rounds half away from zero to two places.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Cents returns d in minor units, saturating at the int64 bounds.
func Cents(d decimal.Decimal) int64 {
	c, ok := cents(d)
	if ok {
		return c
	}
	if d.IsNegative() {
		return math.MinInt64
	}
	return math.MaxInt64
}

func cents(d decimal.Decimal) (int64, bool) {
	c := d.Shift(2).Round(0)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return 0, false
	}
	return c.IntPart(), true
}

// FormatAmount renders d in the given ISO currency, e.g. "₹1,234.50".
// Unknown codes fall back to DefaultCurrency.
func FormatAmount(d decimal.Decimal, currency string) string {
	if money.GetCurrency(currency) == nil {
		currency = DefaultCurrency
	}
	c, ok := cents(d)
	if !ok {
		// beyond go-money's int64 range
		return currency + " " + RoundAmount(d).StringFixed(2)
	}
	return money.New(c, currency).Display()
}
