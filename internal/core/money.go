// Package core holds the ledger domain: entities, money, signed balance
// effects, calendar arithmetic for recurring rules and the error classes
// shared by every layer.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// MaxCents bounds a single amount. Balances may grow past it up to the
// int64 range.
const MaxCents int64 = 1_000_000_000_000_000

// Money is an amount in the smallest currency unit. It crosses JSON as a
// bare integer; fractional or quoted values are rejected.
type Money struct {
	Cents int64
}

// Cents is shorthand for building Money in literals.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// Validate accepts amounts between one cent and MaxCents.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxCents {
		return ErrAmountTooLarge
	}
	return nil
}

// CheckedAdd adds delta cents, failing instead of wrapping around.
func (m Money) CheckedAdd(delta int64) (Money, error) {
	if (delta > 0 && m.Cents > math.MaxInt64-delta) || (delta < 0 && m.Cents < math.MinInt64-delta) {
		return m, ErrBalanceOverflow
	}
	return Money{Cents: m.Cents + delta}, nil
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, m.Cents, 10), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var n json.Number
	if len(data) > 0 && data[0] == '"' {
		return Invalidf("amount must be an integer number of cents")
	}
	if err := json.Unmarshal(data, &n); err != nil {
		return Invalidf("amount must be an integer number of cents")
	}
	c, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return Invalidf("amount must be an integer number of cents, got %s", n.String())
	}
	m.Cents = c
	return nil
}

// String renders the amount with two decimals, e.g. "-12.34".
func (m Money) String() string {
	c := m.Cents
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	frac := strconv.FormatInt(c%100, 10)
	if len(frac) == 1 {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(c/100, 10) + "." + frac
}
