package book

type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	}
	return "unknown"
}

// Direction is the order of prices front to back in a Ladder. Both
// directions leave the best price at the tail.
type Direction int

const (
	// Ascending puts the highest price last. Used for bids.
	Ascending Direction = iota
	// Descending puts the lowest price last. Used for asks.
	Descending
)

func (d Direction) String() string {
	if d == Ascending {
		return "ascending"
	}
	return "descending"
}
