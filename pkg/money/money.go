// Package money represents prices as integer minor units (paise) and renders them with two decimal places.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept for every amount.
const Scale = 2

// Money is an amount in minor currency units.
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// FromDecimal rounds d half away from zero to minor units.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(Scale).Round(0).IntPart())
}

// Parse parses a decimal string such as "40", "40.5" or "40.50".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// Decimal returns m in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Scale)
}

// Times multiplies m by a quantity.
func (m Money) Times(quantity int) Money {
	return m * Money(quantity)
}

// Max returns the larger of m and other.
func (m Money) Max(other Money) Money {
	if other > m {
		return other
	}
	return m
}

// String renders m with exactly two decimal places, e.g. "40.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

// MarshalJSON renders m as a quoted two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	*m = FromDecimal(d)
	return nil
}
