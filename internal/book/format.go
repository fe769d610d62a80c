package book

import (
	"fmt"
	"strings"
)

func (l Level[P, Q]) String() string {
	return fmt.Sprintf("(%v, %v)", l.Price, l.Quantity)
}

// String renders the ladder front to back, e.g. "[(101, 1), (100.5, 2)]".
func (l *Ladder[P, Q]) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, level := range l.levels {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(level.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

func (b *Book[P, Q]) String() string {
	return fmt.Sprintf(
		`UpdateID: %d
Bids:     %s
Asks:     %s`,
		b.updateID,
		b.bids.String(),
		b.asks.String(),
	)
}
