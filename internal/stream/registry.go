package stream

import (
	"strings"

	"depthbook/internal/feed"
)

// Registry indexes synchronizers by upper-case symbol.
type Registry map[string]*Synchronizer

func NewRegistry(syncs ...*Synchronizer) Registry {
	r := make(Registry, len(syncs))
	for _, s := range syncs {
		r[s.Symbol()] = s
	}
	return r
}

// View returns the published book for symbol. known is false for symbols
// the registry does not track; the book is nil while a known symbol is
// still synchronising.
func (r Registry) View(symbol string) (b *feed.Book, known bool) {
	s, ok := r[strings.ToUpper(symbol)]
	if !ok {
		return nil, false
	}
	return s.View(), true
}
