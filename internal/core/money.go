// Package core provides the expense domain types and money handling.
//
// Amounts travel as strings with exactly two fraction digits ("42.50"). That is
// the format the storage schema uses, so it is preserved end to end; decimal
// arithmetic only happens at the edges (normalising input, charting).
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const currencySymbol = "$"

// ParseAmount parses a stored or user-entered amount.
//
// A single leading "$" and surrounding whitespace are ignored, and a decimal
// comma is accepted. Negative values are rejected.
//
// Examples:
//
//	ParseAmount("42.50")  -> 42.5, nil
//	ParseAmount("$42.50") -> 42.5, nil
//	ParseAmount("12,3")   -> 12.3, nil
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, currencySymbol)
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount normalises user input into the stored representation,
// rounding half away from zero to two fraction digits.
func FormatAmount(s string) (string, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return "", err
	}
	return d.StringFixed(2), nil
}

// ChartValue returns the numeric value of a stored amount for charting.
// Malformed amounts chart as 0; the stored string is left untouched.
func ChartValue(amount string) float64 {
	d, err := ParseAmount(amount)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
