package net

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"depthbook/internal/feed"
	"depthbook/internal/pool"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
	defaultIdleTimeout = 5 * time.Minute
)

var (
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrNotSynced     = errors.New("book not synchronised")
	ErrNotListening  = errors.New("server is not listening")
)

// Views resolves a symbol to its latest published book. known is false for
// symbols that are not tracked; the book is nil while a tracked symbol has
// no consistent book.
type Views interface {
	View(symbol string) (b *feed.Book, known bool)
}

// ClientSession is one connected TCP client.
type ClientSession struct {
	id   uuid.UUID
	conn net.Conn
}

// job links a request to the session that sent it. The reader waits on done
// so responses go out in request order.
type job struct {
	session *ClientSession
	request Request
	done    chan error
}

type Server struct {
	address            string
	port               int
	views              Views
	pool               *pool.WorkerPool[job]
	listener           net.Listener
	clientSessions     map[uuid.UUID]*ClientSession
	clientSessionsLock sync.Mutex
}

func New(address string, port, workers int, views Views) *Server {
	if workers <= 0 {
		workers = defaultNWorkers
	}
	return &Server{
		address:        address,
		port:           port,
		views:          views,
		pool:           pool.New[job](workers),
		clientSessions: make(map[uuid.UUID]*ClientSession),
	}
}

// Listen binds the TCP listener. Run calls it when it has not been called.
func (s *Server) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("unable to start listener: %w", err)
	}
	s.listener = listener
	return nil
}

// Addr is the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run accepts clients until t starts dying, then closes the listener and
// every client session.
func (s *Server) Run(t *tomb.Tomb) error {
	if s.listener == nil {
		if err := s.Listen(t.Context(nil)); err != nil {
			return err
		}
	}

	s.pool.Run(t, s.handleRequest)
	t.Go(func() error {
		<-t.Dying()
		s.shutdown()
		return nil
	})

	log.Info().
		Str("address", s.Addr().String()).
		Int("workers", s.pool.Size()).
		Msg("query server running")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return ErrNotListening
			}
			log.Error().Err(err).Msg("error accepting client")
			continue
		}

		session := s.addClientSession(conn)
		log.Info().
			Str("address", conn.RemoteAddr().String()).
			Str("session", session.id.String()).
			Msg("new client added")

		t.Go(func() error {
			s.readSession(t, session)
			return nil
		})
	}
}

func (s *Server) shutdown() {
	log.Info().Msg("query server shutting down")
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Error().Err(err).Msg("unable to close listener")
	}

	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	for _, session := range s.clientSessions {
		_ = session.conn.Close()
	}
}

// readSession frames requests off one connection and hands them to the
// worker pool, one at a time.
func (s *Server) readSession(t *tomb.Tomb, session *ClientSession) {
	defer s.deleteClientSession(session)

	reader := bufio.NewReader(session.conn)
	for {
		if err := session.conn.SetReadDeadline(time.Now().Add(defaultIdleTimeout)); err != nil {
			return
		}

		request, err := ReadRequest(reader)
		if err != nil {
			s.readFailed(session, err)
			return
		}

		done := make(chan error, 1)
		if !s.pool.AddTask(t, job{session: session, request: request, done: done}) {
			return
		}
		select {
		case err := <-done:
			if err != nil {
				log.Warn().
					Err(err).
					Str("session", session.id.String()).
					Msg("unable to send report")
				return
			}
		case <-t.Dying():
			return
		}
	}
}

func (s *Server) readFailed(session *ClientSession, err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		log.Debug().Str("session", session.id.String()).Msg("client disconnected")
	case errors.Is(err, ErrInvalidMessageType):
		// The stream cannot be re-framed after an unknown type.
		report := statusReport(ErrorReport, StatusBadRequest, err)
		if err := s.send(session, &report); err != nil {
			log.Debug().Err(err).Str("session", session.id.String()).Msg("unable to send report")
		}
		log.Warn().Err(err).Str("session", session.id.String()).Msg("error parsing message")
	default:
		log.Warn().Err(err).Str("session", session.id.String()).Msg("error reading from connection")
	}
}

// handleRequest is the worker method: it answers one request. Write errors
// go back to the session reader; any error returned from here is fatal.
func (s *Server) handleRequest(_ *tomb.Tomb, j job) error {
	report := s.report(j.request)
	j.done <- s.send(j.session, &report)
	return nil
}

func (s *Server) report(request Request) Report {
	switch request.Type {
	case QueryDepth:
		b, known := s.views.View(request.Symbol)
		if !known {
			return statusReport(ErrorReport, StatusNotFound, fmt.Errorf("%w: %s", ErrUnknownSymbol, request.Symbol))
		}
		if b == nil {
			return statusReport(ErrorReport, StatusNotSynced, fmt.Errorf("%w: %s", ErrNotSynced, request.Symbol))
		}
		return depthReport(b, int(request.Depth))
	default:
		return statusReport(HeartbeatReport, StatusOK, nil)
	}
}

func (s *Server) send(session *ClientSession, report *Report) error {
	buf, err := report.Serialize()
	if err != nil {
		fallback := statusReport(ErrorReport, StatusBadRequest, err)
		if buf, err = fallback.Serialize(); err != nil {
			return err
		}
	}

	if err := session.conn.SetWriteDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		return err
	}
	_, err = session.conn.Write(buf)
	return err
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) *ClientSession {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	session := &ClientSession{id: uuid.New(), conn: conn}
	s.clientSessions[session.id] = session
	return session
}

// deleteClientSession is an atomic map remove that also closes the
// connection.
func (s *Server) deleteClientSession(session *ClientSession) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	if err := session.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Error().Err(err).Str("session", session.id.String()).Msg("unable to close connection")
	}
	delete(s.clientSessions, session.id)
}

// Sessions is the number of connected clients.
func (s *Server) Sessions() int {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	return len(s.clientSessions)
}
