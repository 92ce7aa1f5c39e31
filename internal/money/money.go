// Package money holds the scalar helpers shared by every component that
// handles prices. All amounts are decimal values in the store currency;
// rounding to two places happens only at display and submission boundaries.
package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Places is the number of decimal places amounts are rounded to.
const Places = 2

// ErrNegative is returned by Parse for amounts below zero.
var ErrNegative = errors.New("amount must not be negative")

// Round rounds d to two decimal places (half away from zero).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Format renders d with exactly two decimal places, e.g. "400.00".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// Parse parses a non-negative decimal amount.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse amount %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegative
	}
	return d, nil
}

// NonNegative clamps negative values to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(d, lo), hi)
}

// Mul multiplies a unit amount by an integer quantity.
func Mul(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}
