package book

import (
	"cmp"

	"github.com/shopspring/decimal"
)

// --- Setup & Helpers --------------------------------------------------------

// tick and lots are small integer price and quantity types so most tests do
// not depend on decimal formatting.
type tick int64

func (t tick) Cmp(o tick) int { return cmp.Compare(t, o) }

type lots int64

func (q lots) Add(o lots) lots { return q + o }

func (q lots) IsZero() bool { return q == 0 }

type testLevel = Level[tick, lots]

func lvl(price tick, quantity lots) testLevel {
	return testLevel{Price: price, Quantity: quantity}
}

type decLevel = Level[decimal.Decimal, decimal.Decimal]

// dec builds a decimal level from strings, panicking on bad input.
func dec(price, quantity string) decLevel {
	return NewLevel(decimal.RequireFromString(price), decimal.RequireFromString(quantity))
}

func newDecBook(opts ...Option) *Book[decimal.Decimal, decimal.Decimal] {
	return New[decimal.Decimal, decimal.Decimal](opts...)
}
