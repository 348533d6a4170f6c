// Package server implements the connection multiplexer: it owns the
// listening endpoint and every open connection, assembles complete frames,
// and drives one handler invocation per ready request.
//
// Frame assembly runs on one goroutine per connection, so a peer that
// trickles a partial frame stalls only itself. Everything else happens on a
// single dispatch goroutine: the full decode-dispatch-encode-write cycle of
// one request completes before the next is touched, which serializes all
// handler and store access and preserves strict per-connection ordering.
// There is no ordering guarantee across connections.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/glomail/maild/internal/config"
	"github.com/glomail/maild/internal/logging"
	"github.com/glomail/maild/internal/metrics"
)

// Handler processes protocol events on the dispatch goroutine. The server
// guarantees HandleConnect before any HandleRequest for a connection, and
// exactly one HandleDisconnect at teardown.
type Handler interface {
	HandleConnect(connID uint64)

	// HandleRequest processes one complete request frame and returns the
	// response frame to write, or nil for none. A true closeConn asks the
	// server to tear the connection down after writing.
	HandleRequest(ctx context.Context, connID uint64, frame []byte) (resp []byte, closeConn bool)

	HandleDisconnect(connID uint64)
}

// Server is the connection multiplexer.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	handler   Handler
	collector metrics.Collector
	limiter   *ConnectionLimiter

	ln     net.Listener
	conns  map[uint64]*Connection // touched only by the dispatch loop
	events chan event
	done   chan struct{}
	nextID uint64
}

// Config holds configuration for creating a new Server.
type Config struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Collector metrics.Collector
}

type eventKind int

const (
	eventAccept eventKind = iota
	eventFrame
	eventClosed
)

type event struct {
	kind  eventKind
	conn  *Connection
	frame []byte
	err   error
}

// New creates a new Server with the given configuration.
func New(sc Config) (*Server, error) {
	if sc.Cfg == nil {
		return nil, errors.New("server: config is required")
	}
	logger := sc.Logger
	if logger == nil {
		logger = logging.NewLogger(sc.Cfg.LogLevel)
	}
	collector := sc.Collector
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}

	return &Server{
		cfg:       sc.Cfg,
		logger:    logger,
		collector: collector,
		limiter:   NewConnectionLimiter(sc.Cfg.Limits.MaxConnections),
		conns:     make(map[uint64]*Connection),
		events:    make(chan event, 64),
		done:      make(chan struct{}),
	}, nil
}

// SetHandler sets the request handler. Must be called before Run.
func (s *Server) SetHandler(handler Handler) {
	s.handler = handler
}

// Addr returns the bound listener address, valid once Run has started
// listening.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Listen binds the listening endpoint without serving. Run calls it
// implicitly; tests call it first to learn the bound address.
func (s *Server) Listen() error {
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Listen, err)
	}
	s.ln = ln
	return nil
}

// Run serves connections until the context is canceled. It owns the
// dispatch loop; Run returning means every connection has been torn down.
func (s *Server) Run(ctx context.Context) error {
	if s.handler == nil {
		return errors.New("server: no handler configured")
	}
	if err := s.Listen(); err != nil {
		return err
	}

	s.logger.Info("starting server",
		slog.String("listen", s.ln.Addr().String()),
		slog.String("domain", s.cfg.Hostname),
		slog.Int("max_connections", s.cfg.Limits.MaxConnections),
	)

	go s.acceptLoop()

	defer func() {
		close(s.done)
		_ = s.ln.Close()
		for _, c := range s.conns {
			s.teardown(c, errors.New("server shutting down"))
		}
		s.logger.Info("server stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("server shutting down")
			return ctx.Err()
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		}
	}
}

// acceptLoop accepts connections and hands them to the dispatch loop.
func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			// Listener closed during shutdown, or a transient failure.
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", "error", err.Error())
			continue
		}

		if !s.limiter.TryAcquire() {
			s.logger.Warn("connection limit reached, refusing client",
				"remote", conn.RemoteAddr().String(),
			)
			_ = conn.Close()
			continue
		}

		s.nextID++
		c := NewConnection(s.nextID, conn, ConnectionConfig{
			IdleTimeout:  s.cfg.Timeouts.IdleTimeout(),
			WriteTimeout: s.cfg.Timeouts.CommandTimeout(),
			MaxFrame:     s.cfg.Limits.MaxFrameBytes,
		})
		if !s.send(event{kind: eventAccept, conn: c}) {
			_ = c.Close()
			s.limiter.Release()
			return
		}
	}
}

// readLoop assembles complete frames for one connection and forwards them
// to the dispatch loop in arrival order.
func (s *Server) readLoop(c *Connection) {
	for {
		frame, err := c.ReadFrame()
		if err != nil {
			s.send(event{kind: eventClosed, conn: c, err: err})
			return
		}
		if !s.send(event{kind: eventFrame, conn: c, frame: frame}) {
			return
		}
	}
}

// send delivers an event to the dispatch loop unless the server has
// stopped. Returns false when the server is done.
func (s *Server) send(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// dispatch handles one event on the dispatch goroutine.
func (s *Server) dispatch(ctx context.Context, ev event) {
	c := ev.conn

	switch ev.kind {
	case eventAccept:
		s.conns[c.ID()] = c
		s.collector.ConnectionOpened()
		s.handler.HandleConnect(c.ID())
		s.logger.Info("client connected",
			"conn_id", c.ID(),
			"remote", c.RemoteAddr(),
		)
		go s.readLoop(c)

	case eventFrame:
		// The connection may have been torn down while this frame was
		// queued; its session is gone, so the frame is dropped.
		if _, ok := s.conns[c.ID()]; !ok {
			return
		}
		s.handleFrame(ctx, c, ev.frame)

	case eventClosed:
		if _, ok := s.conns[c.ID()]; !ok {
			return
		}
		s.teardown(c, ev.err)
	}
}

// handleFrame runs one full request/response cycle.
func (s *Server) handleFrame(ctx context.Context, c *Connection, frame []byte) {
	logger := s.logger.With("conn_id", c.ID(), "remote", c.RemoteAddr())
	reqCtx := logging.WithContext(ctx, logger)

	resp, closeConn := s.handler.HandleRequest(reqCtx, c.ID(), frame)

	if resp != nil {
		if err := c.WriteFrame(resp); err != nil {
			logger.Error("write failed", "error", err.Error())
			s.teardown(c, err)
			return
		}
	}
	if closeConn {
		s.teardown(c, nil)
	}
}

// teardown removes a connection from the server: the handler drops its
// session, the slot is released, and the stream is closed. Safe against
// double invocation via the connection map.
func (s *Server) teardown(c *Connection, cause error) {
	if _, ok := s.conns[c.ID()]; !ok {
		return
	}
	delete(s.conns, c.ID())

	s.handler.HandleDisconnect(c.ID())
	s.limiter.Release()
	s.collector.ConnectionClosed()
	_ = c.Close()

	if cause != nil && !errors.Is(cause, io.EOF) && !errors.Is(cause, os.ErrDeadlineExceeded) {
		s.logger.Info("client disconnected",
			"conn_id", c.ID(),
			"error", cause.Error(),
		)
		return
	}
	s.logger.Info("client disconnected", "conn_id", c.ID())
}
