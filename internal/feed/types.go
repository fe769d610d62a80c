// Package feed turns exchange market-data payloads into book types priced in
// decimal.Decimal.
package feed

import (
	"fmt"

	"depthbook/internal/book"

	"github.com/shopspring/decimal"
)

type (
	Level       = book.Level[decimal.Decimal, decimal.Decimal]
	Ladder      = book.Ladder[decimal.Decimal, decimal.Decimal]
	Book        = book.Book[decimal.Decimal, decimal.Decimal]
	DepthUpdate = book.DepthUpdate[decimal.Decimal, decimal.Decimal]
	Snapshot    = book.Snapshot[decimal.Decimal, decimal.Decimal]
)

// Event carries the envelope fields some feeds put next to a depth update.
type Event struct {
	Type   string
	Symbol string
}

func NewBook(opts ...book.Option) *Book {
	return book.New[decimal.Decimal, decimal.Decimal](opts...)
}

// FromSnapshot builds the initial book for a snapshot.
func FromSnapshot(snapshot Snapshot, opts ...book.Option) *Book {
	return book.FromSnapshot(snapshot, opts...)
}

// ParseLevel parses a decimal price and quantity pair.
func ParseLevel(price, quantity string) (Level, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return Level{}, fmt.Errorf("%w: price %q: %w", ErrMalformed, price, err)
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return Level{}, fmt.Errorf("%w: quantity %q: %w", ErrMalformed, quantity, err)
	}
	return book.NewLevel(p, q), nil
}

// MustLevel is ParseLevel for literals; it panics on bad input.
func MustLevel(price, quantity string) Level {
	level, err := ParseLevel(price, quantity)
	if err != nil {
		panic(err)
	}
	return level
}
