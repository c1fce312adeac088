// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and rendering cents back as decimal numbers.
package core

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var maxAmount = decimal.New(math.MaxInt64/100, 0)

// ParseAmount converts a decimal string to a positive Money value.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Values
// are kept with two fractional digits, rounding half away from zero on the
// third. Zero, negative and non-numeric values return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,34")  -> 1234 cents
//	ParseAmount("12.345") -> 1235 cents
//	ParseAmount("500")    -> 50000 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	cents, err := centsFromDecimal(d)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", err, s)
	}
	if cents <= 0 {
		return Money{}, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, s)
	}
	return Money{Cents: cents}, nil
}

// centsFromDecimal rounds d to cents, rejecting magnitudes beyond maxAmount.
func centsFromDecimal(d decimal.Decimal) (int64, error) {
	if d.Abs().GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON renders the amount as a bare JSON number in currency units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string within the range
// accepted by ParseAmount. Zero and negative values are kept.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
	}
	cents, err := centsFromDecimal(d)
	if err != nil {
		return fmt.Errorf("%w: %s", err, data)
	}
	m.Cents = cents
	return nil
}
