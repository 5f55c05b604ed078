// Package money provides fixed-point currency arithmetic with two fractional
// digits. All pricing and discount math in this repository goes through this
// type; raw float arithmetic on monetary values is a bug.
package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Money is a currency amount backed by an arbitrary-precision decimal.
// The zero value is $0.00 and ready to use. Values are rounded to two
// fractional digits only at explicit Round calls, so intermediate percentage
// math keeps full precision.
type Money struct {
	d decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{}
}

// FromDecimal wraps a decimal as a Money value.
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d}
}

// Parse parses a decimal string such as "83.50" into a Money value.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, errors.Wrapf(err, "parse money %q", s)
	}
	return Money{d: d}, nil
}

// MustParse is Parse for static literals; it panics on malformed input.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the underlying decimal, for the database codec boundary.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// MulInt returns m multiplied by an integer quantity.
func (m Money) MulInt(n int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(n))}
}

// Percent returns p percent of m, e.g. m.Percent(20) is twenty percent of m.
// The result keeps full precision; round before presenting it.
func (m Money) Percent(p decimal.Decimal) Money {
	return Money{d: m.d.Mul(p).Div(hundred)}
}

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	return Money{d: decimal.Min(m.d, o.d)}
}

// ClampZero floors negative amounts at zero.
func (m Money) ClampZero() Money {
	if m.d.IsNegative() {
		return Money{}
	}
	return m
}

// Round rounds to two fractional digits, half away from zero (half-up for
// the non-negative amounts this repository deals in).
func (m Money) Round() Money {
	return Money{d: m.d.Round(2)}
}

// Cmp compares m and o: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

// LessThan reports whether m < o.
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

// Equal reports whether m and o represent the same amount.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.d.IsZero() }

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool { return m.d.IsPositive() }

// String formats the amount with exactly two fractional digits.
func (m Money) String() string { return m.d.StringFixed(2) }

// MarshalJSON encodes the amount as a decimal string, never a float.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.d.StringFixed(2) + `"`), nil
}

// UnmarshalJSON accepts both quoted decimal strings and bare JSON numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.Wrapf(err, "unmarshal money %q", data)
	}
	m.d = d
	return nil
}
