package source

import (
	"context"
	"fmt"

	"depthbook/internal/feed"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const natsPendingMsgs = 4096

// NATS subscribes to a subject carrying protobuf depth updates.
type NATS struct {
	Conn    *nats.Conn
	Subject string
	Symbol  string
}

// Run delivers messages to sink until t starts dying. Messages dropped by a
// slow consumer surface downstream as sequence gaps.
func (n *NATS) Run(t *tomb.Tomb, sink Sink) error {
	msgs := make(chan *nats.Msg, natsPendingMsgs)
	sub, err := n.Conn.ChanSubscribe(n.Subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", n.Subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Debug().Err(err).Str("subject", n.Subject).Msg("unsubscribe failed")
		}
	}()

	log.Info().Str("symbol", n.Symbol).Str("subject", n.Subject).Msg("nats depth stream subscribed")

	ctx := t.Context(nil)
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-msgs:
			if err := n.handle(ctx, msg.Data, sink); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (n *NATS) handle(ctx context.Context, data []byte, sink Sink) error {
	update, event, err := feed.UnmarshalDepthUpdateProto(data)
	if err != nil {
		log.Warn().Err(err).Str("subject", n.Subject).Msg("skipping message")
		return nil
	}
	if !forSymbol(event, n.Symbol) {
		return nil
	}
	return sink(ctx, update)
}
