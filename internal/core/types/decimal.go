// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MoneyPlaces is the number of fractional digits kept for derived amounts.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// NewMoneyFromInt creates a Money value from a whole number (quantities, whole rupees).
func NewMoneyFromInt(n int64) Money {
	return decimal.NewFromInt(n)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Round2 rounds half away from zero to two decimal places.
func Round2(m Money) Money {
	return m.Round(MoneyPlaces)
}

// Percentage returns round2(m * pct / 100).
func Percentage(m Money, pct Money) Money {
	return Round2(m.Mul(pct).Div(hundred))
}

// IsValidPercent reports whether p lies in [0, 100].
func IsValidPercent(p Money) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

// MaxZero floors negative amounts at zero.
func MaxZero(m Money) Money {
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}

// MinMoney returns the smaller of two amounts.
func MinMoney(a, b Money) Money {
	return decimal.Min(a, b)
}

// Sum adds up a list of amounts.
func Sum(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// FormatMoney renders an amount with exactly two fractional digits.
func FormatMoney(m Money) string {
	return m.StringFixed(MoneyPlaces)
}
