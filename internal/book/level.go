package book

// Price is implemented by totally ordered price types, decimal.Decimal being
// the one used throughout this module.
type Price[P any] interface {
	// Cmp returns -1, 0 or +1 when the receiver is below, equal to or above
	// the argument.
	Cmp(P) int
}

// Quantity is implemented by additive quantity types with a zero identity.
type Quantity[Q any] interface {
	Add(Q) Q
	IsZero() bool
}

// Level is the aggregated resting quantity at one price.
type Level[P Price[P], Q Quantity[Q]] struct {
	Price    P
	Quantity Q
}

func NewLevel[P Price[P], Q Quantity[Q]](price P, quantity Q) Level[P, Q] {
	return Level[P, Q]{Price: price, Quantity: quantity}
}

// Combine adds the incoming quantity onto the existing one and keeps the
// price of incoming. The operation is not commutative, and it is not
// associative when prices differ. Combining two different price bins is
// meaningless; callers must check the prices are equal first.
func Combine[P Price[P], Q Quantity[Q]](existing, incoming Level[P, Q]) Level[P, Q] {
	return Level[P, Q]{
		Price:    incoming.Price,
		Quantity: existing.Quantity.Add(incoming.Quantity),
	}
}

func (l Level[P, Q]) priceEquals(price P) bool {
	return l.Price.Cmp(price) == 0
}
