package book

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sort"
)

var (
	ErrUnordered      = errors.New("ladder out of order")
	ErrDuplicatePrice = errors.New("duplicate price in ladder")
)

// Ladder is one side of the book: levels with unique prices, sorted by the
// ladder's Direction so that the best price is always the last element.
//
// A Ladder is not safe for concurrent use.
type Ladder[P Price[P], Q Quantity[Q]] struct {
	direction Direction
	levels    []Level[P, Q]
}

func NewLadder[P Price[P], Q Quantity[Q]](direction Direction) *Ladder[P, Q] {
	return &Ladder[P, Q]{direction: direction}
}

// NewBids returns an empty ascending ladder.
func NewBids[P Price[P], Q Quantity[Q]]() *Ladder[P, Q] {
	return NewLadder[P, Q](Ascending)
}

// NewAsks returns an empty descending ladder.
func NewAsks[P Price[P], Q Quantity[Q]]() *Ladder[P, Q] {
	return NewLadder[P, Q](Descending)
}

func (l *Ladder[P, Q]) Direction() Direction { return l.direction }

func (l *Ladder[P, Q]) Len() int { return len(l.levels) }

// At returns the level at index i, counted from the front (worst price).
func (l *Ladder[P, Q]) At(i int) Level[P, Q] { return l.levels[i] }

// Best returns the tail level.
func (l *Ladder[P, Q]) Best() (Level[P, Q], bool) {
	if len(l.levels) == 0 {
		var zero Level[P, Q]
		return zero, false
	}
	return l.levels[len(l.levels)-1], true
}

// Levels returns a copy of the ladder front to back.
func (l *Ladder[P, Q]) Levels() []Level[P, Q] {
	return slices.Clone(l.levels)
}

// Top returns up to n levels best first. A non-positive n returns them all.
func (l *Ladder[P, Q]) Top(n int) []Level[P, Q] {
	if n <= 0 || n > len(l.levels) {
		n = len(l.levels)
	}
	top := make([]Level[P, Q], 0, n)
	for i := len(l.levels) - 1; i >= len(l.levels)-n; i-- {
		top = append(top, l.levels[i])
	}
	return top
}

// All iterates the ladder front to back.
func (l *Ladder[P, Q]) All() iter.Seq2[int, Level[P, Q]] {
	return func(yield func(int, Level[P, Q]) bool) {
		for i, level := range l.levels {
			if !yield(i, level) {
				return
			}
		}
	}
}

func (l *Ladder[P, Q]) Clone() *Ladder[P, Q] {
	return &Ladder[P, Q]{
		direction: l.direction,
		levels:    slices.Clone(l.levels),
	}
}

// orderedBefore reports whether price a belongs strictly in front of price b.
func (l *Ladder[P, Q]) orderedBefore(a, b P) bool {
	if l.direction == Ascending {
		return a.Cmp(b) < 0
	}
	return a.Cmp(b) > 0
}

// Locate returns the partition point for price: the smallest index i such
// that every level before i is ordered before price and no level at or after
// i is. If a level with an equal price exists it sits exactly at i.
func (l *Ladder[P, Q]) Locate(price P) int {
	return sort.Search(len(l.levels), func(i int) bool {
		return !l.orderedBefore(l.levels[i].Price, price)
	})
}

// Find returns the level resting at price.
func (l *Ladder[P, Q]) Find(price P) (Level[P, Q], bool) {
	i := l.Locate(price)
	if i < len(l.levels) && l.levels[i].priceEquals(price) {
		return l.levels[i], true
	}
	var zero Level[P, Q]
	return zero, false
}

func (l *Ladder[P, Q]) insertAt(i int, level Level[P, Q]) {
	l.levels = slices.Insert(l.levels, i, level)
}

func (l *Ladder[P, Q]) removeAt(i int) {
	l.levels = slices.Delete(l.levels, i, i+1)
}

func (l *Ladder[P, Q]) replaceAt(i int, level Level[P, Q]) {
	l.levels[i] = level
}

// Validate checks that prices are unique and strictly follow the ladder's
// direction. A failure means the update engine itself is broken.
func (l *Ladder[P, Q]) Validate() error {
	for i := 1; i < len(l.levels); i++ {
		prev, cur := l.levels[i-1].Price, l.levels[i].Price
		if prev.Cmp(cur) == 0 {
			return fmt.Errorf("%w: %v at index %d", ErrDuplicatePrice, cur, i)
		}
		if !l.orderedBefore(prev, cur) {
			return fmt.Errorf("%w: %v then %v at index %d (%s)", ErrUnordered, prev, cur, i, l.direction)
		}
	}
	return nil
}

func (l *Ladder[P, Q]) assertValid() {
	if !assertInvariants {
		return
	}
	if err := l.Validate(); err != nil {
		panic(err)
	}
}
