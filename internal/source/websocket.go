package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"depthbook/internal/feed"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const defaultReconnectBackoff = time.Second

// WebSocket reads JSON depth updates from a websocket stream and reconnects
// when the stream drops.
type WebSocket struct {
	URL     string
	Symbol  string
	Backoff time.Duration
	Dialer  *websocket.Dialer
}

// Run streams into sink until t starts dying or sink fails.
func (w *WebSocket) Run(t *tomb.Tomb, sink Sink) error {
	backoff := w.Backoff
	if backoff <= 0 {
		backoff = defaultReconnectBackoff
	}
	ctx := t.Context(nil)

	for {
		err := w.stream(ctx, sink)
		select {
		case <-t.Dying():
			return nil
		default:
		}

		var sinkErr *sinkError
		if errors.As(err, &sinkErr) {
			return sinkErr.err
		}
		log.Warn().
			Err(err).
			Str("symbol", w.Symbol).
			Str("url", w.URL).
			Dur("retry", backoff).
			Msg("depth stream disconnected")

		select {
		case <-t.Dying():
			return nil
		case <-time.After(backoff):
		}
	}
}

type sinkError struct{ err error }

func (e *sinkError) Error() string { return e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

// stream runs one connection until it fails.
func (w *WebSocket) stream(ctx context.Context, sink Sink) error {
	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket connection failed: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	log.Info().Str("symbol", w.Symbol).Str("url", w.URL).Msg("depth stream connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		update, event, err := feed.DecodeDepthUpdate(data)
		if err != nil {
			// Subscription acks and other control frames land here too.
			log.Debug().Err(err).Str("symbol", w.Symbol).Msg("skipping message")
			continue
		}
		if !forSymbol(event, w.Symbol) {
			continue
		}
		if err := sink(ctx, update); err != nil {
			return &sinkError{err: err}
		}
	}
}
