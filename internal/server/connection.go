package server

import (
	"bufio"
	"net"
	"sync/atomic"
	"time"

	"github.com/glomail/maild/internal/wire"
)

// Connection wraps one client stream with buffered I/O, a server-assigned
// identity and deadline handling. The multiplexer owns every Connection
// exclusively; nothing else reads or writes it.
type Connection struct {
	id     uint64
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	idleTimeout  time.Duration
	writeTimeout time.Duration
	maxFrame     int

	closed atomic.Bool
}

// ConnectionConfig holds per-connection settings.
type ConnectionConfig struct {
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	MaxFrame     int
}

// NewConnection creates a Connection with the given identity over conn.
func NewConnection(id uint64, conn net.Conn, cfg ConnectionConfig) *Connection {
	maxFrame := cfg.MaxFrame
	if maxFrame <= 0 {
		maxFrame = wire.DefaultMaxFrameBytes
	}
	return &Connection{
		id:           id,
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writer:       bufio.NewWriter(conn),
		idleTimeout:  cfg.IdleTimeout,
		writeTimeout: cfg.WriteTimeout,
		maxFrame:     maxFrame,
	}
}

// ID returns the server-assigned connection identity.
func (c *Connection) ID() uint64 {
	return c.id
}

// RemoteAddr returns the peer address as a string.
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// ReadFrame blocks until one complete frame has been assembled from the
// peer or the idle deadline expires. Partial frames buffer inside the
// connection; they never reach the dispatcher.
func (c *Connection) ReadFrame() ([]byte, error) {
	if c.idleTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
			return nil, err
		}
	}
	return wire.ReadFrame(c.reader, c.maxFrame)
}

// WriteFrame writes and flushes one frame to the peer.
func (c *Connection) WriteFrame(body []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	if err := wire.WriteFrame(c.writer, body, c.maxFrame); err != nil {
		return err
	}
	return c.writer.Flush()
}

// Close closes the underlying stream. Idempotent.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
