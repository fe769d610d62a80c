package stream

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"depthbook/internal/book"
	"depthbook/internal/feed"
	"depthbook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"
	tomb "gopkg.in/tomb.v2"
)

const (
	defaultMaxPending   = 1000
	defaultRetryBackoff = time.Second
)

var ErrNoSnapshotSource = errors.New("no snapshot source")

// SnapshotSource fetches a full depth snapshot for one symbol.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (feed.Snapshot, error)
}

type Config struct {
	Symbol string
	// Deltas is the strategy depth-update deltas are applied with.
	Deltas book.Strategy
	// MaxPending bounds the packets buffered while waiting for a snapshot.
	// The oldest are dropped first.
	MaxPending int
	// QueueSize is the capacity of the Push queue. Zero makes Push wait for
	// the synchronizer to take each packet.
	QueueSize int
	// RetryBackoff is the wait before re-fetching a failed or outdated
	// snapshot.
	RetryBackoff time.Duration
}

type snapshotResult struct {
	snapshot feed.Snapshot
	err      error
}

// Synchronizer keeps one symbol's Book in step with a depth-update stream.
//
// It is the single writer of its Book: packets are queued with Push and
// applied by the Run goroutine, which owns every mutable field below.
// Readers get an immutable clone from View after each change.
type Synchronizer struct {
	cfg       Config
	snapshots SnapshotSource
	metrics   *metrics.Feed

	updates chan feed.DepthUpdate
	results chan snapshotResult

	// Owned by Run.
	book     *feed.Book
	pending  *btree.BTreeG[feed.DepthUpdate]
	session  uuid.UUID
	synced   bool
	fetching bool

	view atomic.Pointer[feed.Book]
}

// New builds a synchronizer. m may be nil.
func New(cfg Config, snapshots SnapshotSource, m *metrics.Feed) *Synchronizer {
	cfg.Symbol = strings.ToUpper(cfg.Symbol)
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaultMaxPending
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}

	// Buffered packets are replayed in feed order.
	pending := btree.NewBTreeGOptions(func(a, b feed.DepthUpdate) bool {
		if a.FirstUpdateID != b.FirstUpdateID {
			return a.FirstUpdateID < b.FirstUpdateID
		}
		return a.LastUpdateID < b.LastUpdateID
	}, btree.Options{NoLocks: true})

	return &Synchronizer{
		cfg:       cfg,
		snapshots: snapshots,
		metrics:   m,
		updates:   make(chan feed.DepthUpdate, cfg.QueueSize),
		results:   make(chan snapshotResult, 1),
		pending:   pending,
		session:   uuid.New(),
	}
}

func (s *Synchronizer) Symbol() string { return s.cfg.Symbol }

// View returns the most recently published book, or nil while the
// synchronizer has no consistent book. The returned book must not be
// mutated.
func (s *Synchronizer) View() *feed.Book {
	return s.view.Load()
}

// Push queues a packet for the Run goroutine.
func (s *Synchronizer) Push(ctx context.Context, update feed.DepthUpdate) error {
	select {
	case s.updates <- update:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies queued packets until t starts dying. It fetches the initial
// snapshot itself and resynchronises on every gap.
func (s *Synchronizer) Run(t *tomb.Tomb) error {
	if s.snapshots == nil {
		return ErrNoSnapshotSource
	}

	log.Info().
		Str("symbol", s.cfg.Symbol).
		Stringer("strategy", s.cfg.Deltas).
		Msg("synchronizer running")

	s.metrics.Resync(s.cfg.Symbol, metrics.ReasonStartup)
	s.requestSnapshot(t, 0)

	for {
		select {
		case <-t.Dying():
			log.Info().Str("symbol", s.cfg.Symbol).Msg("synchronizer stopped")
			return nil
		case update := <-s.updates:
			s.handleUpdate(t, update)
		case result := <-s.results:
			s.fetching = false
			s.handleSnapshot(t, result)
		}
	}
}

func (s *Synchronizer) handleUpdate(t *tomb.Tomb, update feed.DepthUpdate) {
	if !s.synced {
		s.buffer(update)
		s.requestSnapshot(t, 0)
		return
	}

	if !s.apply(update) {
		s.resync(t, metrics.ReasonGap, 0)
		s.buffer(update)
		return
	}
	s.publish()
}

// handleSnapshot installs a fresh book and replays the buffered packets
// that are newer than it.
func (s *Synchronizer) handleSnapshot(t *tomb.Tomb, result snapshotResult) {
	if result.err != nil {
		log.Warn().
			Err(result.err).
			Str("symbol", s.cfg.Symbol).
			Str("session", s.session.String()).
			Dur("retry", s.cfg.RetryBackoff).
			Msg("snapshot fetch failed")
		s.metrics.Resync(s.cfg.Symbol, metrics.ReasonSnapshotError)
		s.requestSnapshot(t, s.cfg.RetryBackoff)
		return
	}

	s.book = feed.FromSnapshot(result.snapshot, book.WithDeltaStrategy(s.cfg.Deltas))
	s.synced = true

	for {
		update, ok := s.pending.PopMin()
		if !ok {
			break
		}
		// Already covered by the snapshot.
		if update.LastUpdateID <= s.book.UpdateID() {
			s.metrics.Packet(s.cfg.Symbol, metrics.OutcomeStale)
			continue
		}
		if !s.apply(update) {
			// The snapshot is older than the buffered stream can bridge. The
			// rest of the buffer waits for the next one.
			s.pending.Set(update)
			s.restart(t, metrics.ReasonSnapshotStale, s.cfg.RetryBackoff)
			return
		}
	}

	log.Info().
		Str("symbol", s.cfg.Symbol).
		Str("session", s.session.String()).
		Uint64("watermark", s.book.UpdateID()).
		Int("bids", s.book.Bids().Len()).
		Int("asks", s.book.Asks().Len()).
		Msg("book synchronised")
	s.publish()
}

// apply folds one packet into the synced book. It reports false only on a
// gap; stale packets are dropped.
func (s *Synchronizer) apply(update feed.DepthUpdate) bool {
	switch s.book.Check(update) {
	case book.Gap:
		log.Warn().
			Str("symbol", s.cfg.Symbol).
			Str("session", s.session.String()).
			Uint64("watermark", s.book.UpdateID()).
			Uint64("first", update.FirstUpdateID).
			Uint64("last", update.LastUpdateID).
			Msg("sequence gap")
		s.metrics.Packet(s.cfg.Symbol, metrics.OutcomeGap)
		return false
	case book.Stale:
		s.metrics.Packet(s.cfg.Symbol, metrics.OutcomeStale)
		return true
	}

	s.book.Accept(update)
	s.metrics.Packet(s.cfg.Symbol, metrics.OutcomeAccepted)
	return true
}

// resync throws the book and the pending buffer away and starts a new
// snapshot session.
func (s *Synchronizer) resync(t *tomb.Tomb, reason string, delay time.Duration) {
	s.pending.Clear()
	s.restart(t, reason, delay)
}

// restart throws the book away and starts a new snapshot session, keeping
// buffered packets.
func (s *Synchronizer) restart(t *tomb.Tomb, reason string, delay time.Duration) {
	s.synced = false
	s.book = nil
	s.view.Store(nil)
	s.session = uuid.New()

	log.Info().
		Str("symbol", s.cfg.Symbol).
		Str("session", s.session.String()).
		Str("reason", reason).
		Msg("resynchronising")
	s.metrics.Resync(s.cfg.Symbol, reason)
	s.requestSnapshot(t, delay)
}

func (s *Synchronizer) buffer(update feed.DepthUpdate) {
	s.pending.Set(update)
	s.metrics.Packet(s.cfg.Symbol, metrics.OutcomeBuffered)
	for s.pending.Len() > s.cfg.MaxPending {
		s.pending.PopMin()
		s.metrics.Packet(s.cfg.Symbol, metrics.OutcomeDropped)
	}
}

// requestSnapshot starts a fetch unless one is in flight. The result comes
// back to Run through s.results.
func (s *Synchronizer) requestSnapshot(t *tomb.Tomb, delay time.Duration) {
	if s.fetching {
		return
	}
	s.fetching = true

	t.Go(func() error {
		if delay > 0 {
			select {
			case <-t.Dying():
				return nil
			case <-time.After(delay):
			}
		}

		snapshot, err := s.snapshots.Snapshot(t.Context(nil))
		select {
		case s.results <- snapshotResult{snapshot: snapshot, err: err}:
		case <-t.Dying():
		}
		return nil
	})
}

func (s *Synchronizer) publish() {
	view := s.book.Clone()
	s.view.Store(view)
	s.metrics.Book(s.cfg.Symbol, view.Bids().Len(), view.Asks().Len(), view.UpdateID())
}
