package book

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownStrategy = errors.New("unknown update strategy")

// Strategy selects how an incoming level is folded into a ladder.
type Strategy int

const (
	// ReplaceOrRemove treats the incoming quantity as the final resting size
	// at that price. Zero deletes the level and is never stored.
	ReplaceOrRemove Strategy = iota
	// AggregateOrCreate treats the incoming quantity as an amount to add to
	// whatever rests at that price.
	AggregateOrCreate
)

func (s Strategy) String() string {
	switch s {
	case ReplaceOrRemove:
		return "replace-or-remove"
	case AggregateOrCreate:
		return "aggregate-or-create"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy accepts the long names returned by String as well as the
// short forms "replace" and "aggregate".
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "replace", "replace-or-remove", "absolute", "snapshot":
		return ReplaceOrRemove, nil
	case "aggregate", "aggregate-or-create", "delta", "incremental":
		return AggregateOrCreate, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Operation is the positional mutation a strategy asks the engine to make.
type Operation int

const (
	Noop Operation = iota
	// Create inserts a level at a price not yet in the ladder
	// (aggregate-or-create).
	Create
	// Aggregate overwrites a level with its combination with the incoming one.
	Aggregate
	// Replace overwrites a level with the incoming one.
	Replace
	// Remove deletes the level at the slot.
	Remove
	// Displace inserts a level at a price not yet in the ladder
	// (replace-or-remove).
	Displace
)

func (o Operation) String() string {
	switch o {
	case Noop:
		return "noop"
	case Create:
		return "create"
	case Aggregate:
		return "aggregate"
	case Replace:
		return "replace"
	case Remove:
		return "remove"
	case Displace:
		return "displace"
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

// Decision is the result of a strategy. Level holds what gets written for
// Create, Aggregate, Replace and Displace and is the zero value otherwise.
type Decision[P Price[P], Q Quantity[Q]] struct {
	Operation Operation
	Level     Level[P, Q]
}

// Decide maps an incoming level and the level currently occupying its slot
// (found is false when the slot is past the end of the ladder) to an
// operation. It does not touch any ladder.
func Decide[P Price[P], Q Quantity[Q]](strategy Strategy, incoming, existing Level[P, Q], found bool) Decision[P, Q] {
	match := found && existing.priceEquals(incoming.Price)
	switch strategy {
	case AggregateOrCreate:
		return aggregateOrCreate(incoming, existing, match)
	default:
		return replaceOrRemove(incoming, match)
	}
}

// aggregateOrCreate creates on first sight of a price even when the incoming
// quantity is zero: in delta feeds a mentioned price rests until a later
// delta nets it out.
func aggregateOrCreate[P Price[P], Q Quantity[Q]](incoming, existing Level[P, Q], match bool) Decision[P, Q] {
	if !match {
		return Decision[P, Q]{Operation: Create, Level: incoming}
	}
	combined := Combine(existing, incoming)
	if combined.Quantity.IsZero() {
		return Decision[P, Q]{Operation: Remove}
	}
	return Decision[P, Q]{Operation: Aggregate, Level: combined}
}

func replaceOrRemove[P Price[P], Q Quantity[Q]](incoming Level[P, Q], match bool) Decision[P, Q] {
	zero := incoming.Quantity.IsZero()
	switch {
	case match && zero:
		return Decision[P, Q]{Operation: Remove}
	case match:
		return Decision[P, Q]{Operation: Replace, Level: incoming}
	case zero:
		return Decision[P, Q]{Operation: Noop}
	default:
		return Decision[P, Q]{Operation: Displace, Level: incoming}
	}
}
