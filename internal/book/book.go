package book

import (
	"errors"
	"fmt"
)

var ErrWatermarkRegressed = errors.New("update id watermark moved backwards")

// Continuity classifies a depth update against the book's watermark.
type Continuity int

const (
	// Continuous updates overlap or directly follow the watermark.
	Continuous Continuity = iota
	// Gap means at least one update between the watermark and the packet
	// was never seen.
	Gap
	// Stale means the packet lies entirely behind the watermark.
	Stale
)

func (c Continuity) String() string {
	switch c {
	case Continuous:
		return "continuous"
	case Gap:
		return "gap"
	case Stale:
		return "stale"
	}
	return fmt.Sprintf("continuity(%d)", int(c))
}

// DepthUpdate is one incremental feed message covering the contiguous
// update ids FirstUpdateID..LastUpdateID. Bids and Asks are deltas in feed
// order.
type DepthUpdate[P Price[P], Q Quantity[Q]] struct {
	EventTime     uint64
	FirstUpdateID uint64
	LastUpdateID  uint64
	Bids          []Level[P, Q]
	Asks          []Level[P, Q]
}

// Snapshot is a full depth image valid as of LastUpdateID.
type Snapshot[P Price[P], Q Quantity[Q]] struct {
	LastUpdateID uint64
	Bids         []Level[P, Q]
	Asks         []Level[P, Q]
}

type options struct {
	deltas Strategy
}

type Option func(*options)

// WithDeltaStrategy sets the strategy Accept uses for packet deltas. Feeds
// that send absolute sizes (the default) use ReplaceOrRemove; feeds that
// send quantity changes use AggregateOrCreate.
func WithDeltaStrategy(strategy Strategy) Option {
	return func(o *options) {
		o.deltas = strategy
	}
}

// Book pairs a bid and an ask ladder with the id of the last depth update
// folded into it.
//
// A Book has no internal locking. All mutating calls for one Book must come
// from a single goroutine; readers elsewhere should be handed a Clone.
type Book[P Price[P], Q Quantity[Q]] struct {
	updateID uint64
	bids     *Ladder[P, Q]
	asks     *Ladder[P, Q]
	deltas   Strategy
}

func New[P Price[P], Q Quantity[Q]](opts ...Option) *Book[P, Q] {
	o := options{deltas: ReplaceOrRemove}
	for _, opt := range opts {
		opt(&o)
	}
	return &Book[P, Q]{
		bids:   NewBids[P, Q](),
		asks:   NewAsks[P, Q](),
		deltas: o.deltas,
	}
}

// FromSnapshot builds a book by folding every snapshot row through
// ReplaceOrRemove. Zero-quantity rows are dropped and a repeated price keeps
// its last row.
func FromSnapshot[P Price[P], Q Quantity[Q]](snapshot Snapshot[P, Q], opts ...Option) *Book[P, Q] {
	b := New[P, Q](opts...)
	b.bids.ApplyAll(ReplaceOrRemove, snapshot.Bids)
	b.asks.ApplyAll(ReplaceOrRemove, snapshot.Asks)
	b.updateID = snapshot.LastUpdateID
	return b
}

// UpdateID returns the watermark: the last update id applied to the book.
func (b *Book[P, Q]) UpdateID() uint64 { return b.updateID }

// DeltaStrategy returns the strategy used by Accept.
func (b *Book[P, Q]) DeltaStrategy() Strategy { return b.deltas }

// Bids returns the bid ladder. It must not be mutated other than through
// the book.
func (b *Book[P, Q]) Bids() *Ladder[P, Q] { return b.bids }

// Asks returns the ask ladder. It must not be mutated other than through
// the book.
func (b *Book[P, Q]) Asks() *Ladder[P, Q] { return b.asks }

func (b *Book[P, Q]) ladder(side Side) *Ladder[P, Q] {
	if side == Ask {
		return b.asks
	}
	return b.bids
}

// Apply sets the resting quantity at level.Price on side. Quantities are
// absolute: zero removes the level.
func (b *Book[P, Q]) Apply(side Side, level Level[P, Q]) Operation {
	return b.ladder(side).Apply(ReplaceOrRemove, level)
}

func (b *Book[P, Q]) ApplyBid(level Level[P, Q]) Operation { return b.Apply(Bid, level) }

func (b *Book[P, Q]) ApplyAsk(level Level[P, Q]) Operation { return b.Apply(Ask, level) }

// Check classifies update against the watermark w. The update is a Gap when
// w+1 < FirstUpdateID and Stale when LastUpdateID+1 < w. Anything else,
// including a range straddling w, is Continuous.
func (b *Book[P, Q]) Check(update DepthUpdate[P, Q]) Continuity {
	// Written as differences so ids near math.MaxUint64 do not wrap.
	switch {
	case update.FirstUpdateID > b.updateID && update.FirstUpdateID-b.updateID > 1:
		return Gap
	case b.updateID > update.LastUpdateID && b.updateID-update.LastUpdateID > 1:
		return Stale
	default:
		return Continuous
	}
}

// Accept folds a continuous update into the book and reports true. Gapped
// or stale updates are rejected untouched and the caller decides whether to
// resynchronise from a snapshot. An accepted update is always applied in
// full, bids first, using the book's delta strategy. The watermark becomes
// LastUpdateID unless that would move it backwards.
func (b *Book[P, Q]) Accept(update DepthUpdate[P, Q]) bool {
	if b.Check(update) != Continuous {
		return false
	}

	before := b.updateID
	b.bids.ApplyAll(b.deltas, update.Bids)
	b.asks.ApplyAll(b.deltas, update.Asks)
	b.updateID = max(b.updateID, update.LastUpdateID)

	if assertInvariants && b.updateID < before {
		panic(fmt.Errorf("%w: %d to %d", ErrWatermarkRegressed, before, b.updateID))
	}
	return true
}

// Merge appends other's levels onto this book's ladders without sorting or
// de-duplicating, and keeps the larger watermark. other is left untouched.
//
// PRECONDITION, NOT CHECKED: every bid in other must price strictly above
// every bid in b, and every ask in other strictly below every ask in b,
// e.g. two disjoint price partitions of one book. Breaking it corrupts the
// ladder order silently and every later Apply or Accept on the book gives
// undefined results. Use Apply or Accept for anything else.
func (b *Book[P, Q]) Merge(other *Book[P, Q]) {
	b.bids.levels = append(b.bids.levels, other.bids.levels...)
	b.asks.levels = append(b.asks.levels, other.asks.levels...)
	b.updateID = max(b.updateID, other.updateID)

	b.bids.assertValid()
	b.asks.assertValid()
}

// Clone returns a deep copy that shares nothing with b.
func (b *Book[P, Q]) Clone() *Book[P, Q] {
	return &Book[P, Q]{
		updateID: b.updateID,
		bids:     b.bids.Clone(),
		asks:     b.asks.Clone(),
		deltas:   b.deltas,
	}
}

// Validate checks both ladders.
func (b *Book[P, Q]) Validate() error {
	if err := b.bids.Validate(); err != nil {
		return fmt.Errorf("bids: %w", err)
	}
	if err := b.asks.Validate(); err != nil {
		return fmt.Errorf("asks: %w", err)
	}
	return nil
}
