package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an exact fixed-point amount. All balance arithmetic in the
// engine goes through this type; binary floating point never enters the
// money path.
type Money struct {
	d decimal.Decimal
}

// ParseMoney parses a caller-supplied amount. Anything that is not a
// valid decimal with at most two fractional digits fails with
// ErrInvalidAmount; positivity is checked by callers via IsPositive
// since zero is a valid stored balance.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("ParseMoney: %q: %w", s, ErrInvalidAmount)
	}
	// Sub-cent values would round at storage time, letting the two
	// sides of a paired write move different amounts.
	if !d.Equal(d.Truncate(2)) {
		return Money{}, fmt.Errorf("ParseMoney: %q: %w", s, ErrInvalidAmount)
	}
	return Money{d: d}, nil
}

func MoneyFromInt(n int64) Money {
	return Money{d: decimal.NewFromInt(n)}
}

func MoneyZero() Money {
	return Money{d: decimal.Zero}
}

func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d)}
}

// Cmp returns -1, 0 or 1.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

func (m Money) LessThan(other Money) bool {
	return m.d.Cmp(other.d) < 0
}

func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.d.Cmp(other.d) >= 0
}

func (m Money) Equal(other Money) bool {
	return m.d.Cmp(other.d) == 0
}

func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// Min returns the smaller of m and other. Repayment clamping is built
// on this.
func (m Money) Min(other Money) Money {
	if m.d.Cmp(other.d) <= 0 {
		return m
	}
	return other
}

// String renders with two decimal places, matching the NUMERIC(12,2)
// columns the stores use.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("Money.UnmarshalJSON: %w", ErrInvalidAmount)
	}
	m.d = d
	return nil
}

// Scan implements sql.Scanner so NUMERIC columns round-trip exactly.
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("Money.Scan: %w", err)
	}
	m.d = d
	return nil
}

// Value implements driver.Valuer; amounts are sent to the database as
// decimal strings, never as floats.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
