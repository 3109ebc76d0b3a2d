// Package core provides the domain model shared by the ledger engine.
//
// Monetary values are decimal.Decimal throughout; they cross the
// persistence boundary as decimal strings with two-decimal precision.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a non-negative monetary amount. Both dot (12.34) and
// comma (12,34) decimal separators are accepted; the result is rounded to
// two decimal places half-up. Negative or malformed input is rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// Round2 rounds to the engine's two-decimal boundary precision.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
