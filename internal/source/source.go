// Package source connects synchronizers to exchange market data: HTTP
// snapshots, JSON depth streams over websocket and protobuf depth streams
// over NATS.
package source

import (
	"context"
	"strings"

	"depthbook/internal/feed"
)

// Sink receives decoded depth updates in arrival order.
type Sink func(ctx context.Context, update feed.DepthUpdate) error

// forSymbol reports whether an update tagged with event symbol belongs to
// symbol. Untagged updates always do.
func forSymbol(event feed.Event, symbol string) bool {
	return event.Symbol == "" || symbol == "" || strings.EqualFold(event.Symbol, symbol)
}
