package book

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_LesserAsksArePushedBack(t *testing.T) {
	asc := NewAsks[tick, lots]()
	asc.Apply(AggregateOrCreate, lvl(0, 1))
	asc.Apply(AggregateOrCreate, lvl(1, 1))

	desc := NewAsks[tick, lots]()
	desc.Apply(AggregateOrCreate, lvl(1, 1))
	desc.Apply(AggregateOrCreate, lvl(0, 1))

	assert.Equal(t, []testLevel{lvl(1, 1), lvl(0, 1)}, asc.Levels())
	assert.Equal(t, []testLevel{lvl(1, 1), lvl(0, 1)}, desc.Levels())
}

func TestApply_GreaterBidsArePushedBack(t *testing.T) {
	asc := NewBids[tick, lots]()
	asc.Apply(ReplaceOrRemove, lvl(0, 1))
	asc.Apply(ReplaceOrRemove, lvl(1, 1))

	desc := NewBids[tick, lots]()
	desc.Apply(ReplaceOrRemove, lvl(1, 1))
	desc.Apply(ReplaceOrRemove, lvl(0, 1))

	assert.Equal(t, []testLevel{lvl(0, 1), lvl(1, 1)}, asc.Levels())
	assert.Equal(t, []testLevel{lvl(0, 1), lvl(1, 1)}, desc.Levels())
}

func TestApply_ReplaceOrRemove(t *testing.T) {
	asks := NewAsks[tick, lots]()

	assert.Equal(t, Displace, asks.Apply(ReplaceOrRemove, lvl(1, 1)))
	assert.Equal(t, Replace, asks.Apply(ReplaceOrRemove, lvl(1, 2)))
	assert.Equal(t, []testLevel{lvl(1, 2)}, asks.Levels())

	assert.Equal(t, Remove, asks.Apply(ReplaceOrRemove, lvl(1, 0)))
	assert.Empty(t, asks.Levels())

	assert.Equal(t, Noop, asks.Apply(ReplaceOrRemove, lvl(1, 0)))
	assert.Empty(t, asks.Levels())
}

func TestApply_AggregateOrCreate(t *testing.T) {
	asks := NewAsks[tick, lots]()

	assert.Equal(t, Create, asks.Apply(AggregateOrCreate, lvl(1, 1)))
	assert.Equal(t, Aggregate, asks.Apply(AggregateOrCreate, lvl(1, 2)))
	assert.Equal(t, []testLevel{lvl(1, 3)}, asks.Levels())

	assert.Equal(t, Remove, asks.Apply(AggregateOrCreate, lvl(1, -3)))
	assert.Empty(t, asks.Levels())
}

func TestApply_AggregateDecimalScenario(t *testing.T) {
	bids := NewBids[decimal.Decimal, decimal.Decimal]()
	bids.Apply(AggregateOrCreate, dec("10.0", "1"))
	bids.Apply(AggregateOrCreate, dec("10.0", "2"))

	assert.Equal(t, "[(10, 3)]", bids.String())
}

func TestApply_InsertsBetweenNeighbours(t *testing.T) {
	bids := NewBids[tick, lots]()
	bids.ApplyAll(ReplaceOrRemove, []testLevel{lvl(10, 1), lvl(30, 1)})

	assert.Equal(t, Displace, bids.Apply(ReplaceOrRemove, lvl(20, 5)))
	assert.Equal(t, Noop, bids.Apply(ReplaceOrRemove, lvl(25, 0)))
	assert.Equal(t, []testLevel{lvl(10, 1), lvl(20, 5), lvl(30, 1)}, bids.Levels())
}

// model mirrors a ladder as a map so random sequences can be checked
// against the decision tables.
type model map[tick]lots

func (m model) apply(strategy Strategy, level testLevel) {
	old, ok := m[level.Price]
	switch {
	case strategy == ReplaceOrRemove && level.Quantity == 0:
		delete(m, level.Price)
	case strategy == ReplaceOrRemove:
		m[level.Price] = level.Quantity
	case !ok:
		m[level.Price] = level.Quantity
	case old+level.Quantity == 0:
		delete(m, level.Price)
	default:
		m[level.Price] = old + level.Quantity
	}
}

func TestApply_RandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for _, strategy := range []Strategy{ReplaceOrRemove, AggregateOrCreate} {
		for _, direction := range []Direction{Ascending, Descending} {
			ladder := NewLadder[tick, lots](direction)
			want := model{}

			for i := 0; i < 3000; i++ {
				level := lvl(tick(rng.IntN(40)), lots(rng.IntN(7)-3))
				ladder.Apply(strategy, level)
				want.apply(strategy, level)

				require.NoError(t, ladder.Validate(), "%s/%s step %d", strategy, direction, i)
			}

			require.Equal(t, len(want), ladder.Len(), "%s/%s", strategy, direction)
			for _, level := range ladder.All() {
				assert.Equal(t, want[level.Price], level.Quantity, "%s/%s price %d", strategy, direction, level.Price)
			}
		}
	}
}

func TestApply_ReplaceOrRemoveZeroNeverRests(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	bids := NewBids[tick, lots]()

	for i := 0; i < 500; i++ {
		price := tick(rng.IntN(20))
		bids.Apply(ReplaceOrRemove, lvl(price, lots(rng.IntN(3))))
		bids.Apply(ReplaceOrRemove, lvl(price, 0))

		_, ok := bids.Find(price)
		require.False(t, ok, "price %d survived a zero replace", price)
	}
}
