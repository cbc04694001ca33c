// Package core provides the domain types shared by the API client, the
// session store and the views.
//
// This file contains amount parsing and currency formatting.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a user-entered transfer amount.
//
// Surrounding whitespace is ignored. The value must be a plain decimal number
// (exponent notation is accepted) and strictly greater than zero.
//
// Examples:
//
//	ParseAmount("25.50") -> 25.5, nil
//	ParseAmount("0")     -> ErrInvalidAmount
//	ParseAmount("-5")    -> ErrInvalidAmount
//	ParseAmount("abc")   -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatUSD renders an amount with two decimals and a dollar sign ("$12.30", "-$4.00").
func FormatUSD(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
