package chatclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// frameConn is the subset of *websocket.Conn used by Connection.
type frameConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// closeGrace bounds how long Close waits to hand the close frame to a socket that is busy
// with a pending write.
const closeGrace = time.Second

type ConnectionOption func(*Connection)

func WithDialer(d *websocket.Dialer) ConnectionOption {
	return func(c *Connection) {
		if d != nil {
			c.dialer = d
		}
	}
}

func WithHeader(h http.Header) ConnectionOption {
	return func(c *Connection) {
		c.header = h.Clone()
	}
}

func WithConnectionLogger(l zerolog.Logger) ConnectionOption {
	return func(c *Connection) {
		c.baseLog = l
	}
}

// Connection owns one websocket link for one session.
//
// A Connection is single-use: it moves from connecting to connected and ends in disconnected.
// Reconnecting means building a new Connection. Inbound frames are delivered one fragment per
// frame, in receipt order, from a single reader goroutine.
type Connection struct {
	ID        string
	SessionID string

	url     string
	dialer  *websocket.Dialer
	header  http.Header
	baseLog zerolog.Logger
	log     zerolog.Logger

	mu         sync.Mutex
	status     Status
	opened     bool
	closed     bool
	conn       frameConn
	onFragment func(string)
	onStatus   func(Status)

	writeMu  sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
}

func NewConnection(url string, sessionID string, opts ...ConnectionOption) *Connection {
	c := &Connection{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		url:       url,
		dialer:    websocket.DefaultDialer,
		baseLog:   log.Logger,
		status:    StatusConnecting,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.baseLog.With().
		Str("component", "chatclient").
		Str("session_id", sessionID).
		Str("conn_id", c.ID).
		Logger()
	return c
}

// OnFragment registers the single consumer of inbound fragments. It must be set before Open.
func (c *Connection) OnFragment(fn func(fragment string)) {
	c.mu.Lock()
	c.onFragment = fn
	c.mu.Unlock()
}

// OnStatus registers the single consumer of status transitions.
func (c *Connection) OnStatus(fn func(status Status)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Done is closed once the connection has reached its terminal state and its reader has exited.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Open dials the backend. On failure the connection ends up disconnected; the error is
// returned for logging only and the Connection must be discarded.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.opened || c.closed {
		c.mu.Unlock()
		return errors.New("connection already used")
	}
	c.opened = true
	c.mu.Unlock()

	c.log.Debug().Str("url", c.url).Msg("dialing")
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.log.Warn().Err(err).Str("url", c.url).Msg("ws dial failed")
		c.shutdown()
		return errors.Wrapf(err, "dial %s", c.url)
	}
	return c.attach(conn)
}

func (c *Connection) attach(conn frameConn) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		c.finish()
		return errors.New("connection closed while dialing")
	}
	c.conn = conn
	c.mu.Unlock()

	c.setStatus(StatusConnected)
	c.log.Info().Msg("ws connected")
	go c.readLoop(conn)
	return nil
}

// Send transmits text as one frame. It is a no-op returning false unless the connection is connected.
func (c *Connection) Send(text string) bool {
	c.mu.Lock()
	conn := c.conn
	ok := c.status == StatusConnected && conn != nil && !c.closed
	c.mu.Unlock()
	if !ok {
		return false
	}

	c.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, []byte(text))
	c.writeMu.Unlock()
	if err != nil {
		c.log.Warn().Err(err).Msg("ws send failed, dropping connection")
		c.shutdown()
		return false
	}
	return true
}

// Close releases the link. It is idempotent and safe on a connection that was never opened.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	opened := c.opened
	c.mu.Unlock()

	var err error
	if conn != nil {
		// WriteControl does not contend on writeMu, so a Send stuck on a peer that stopped
		// reading cannot hold Close up. Closing the socket then fails that Send.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace))
		err = conn.Close()
	}
	c.setStatus(StatusDisconnected)
	if conn == nil && !opened {
		c.finish()
	}
	c.log.Debug().Msg("ws closed")
	return err
}

func (c *Connection) readLoop(conn frameConn) {
	defer c.finish()
	defer c.shutdown()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				c.log.Debug().Err(err).Msg("ws read loop end")
			} else {
				c.log.Warn().Err(err).Msg("ws read failed")
			}
			return
		}

		c.mu.Lock()
		fn := c.onFragment
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if fn != nil {
			fn(string(data))
		}
	}
}

// shutdown moves the connection into its terminal state after a transport failure.
func (c *Connection) shutdown() {
	c.mu.Lock()
	wasClosed := c.closed
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if !wasClosed && conn != nil {
		_ = conn.Close()
	}
	c.setStatus(StatusDisconnected)
	if conn == nil {
		c.finish()
	}
}

func (c *Connection) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// setStatus applies a transition and notifies the status consumer.
// disconnected is terminal; repeated transitions are ignored.
func (c *Connection) setStatus(s Status) {
	c.mu.Lock()
	if c.status == s || c.status == StatusDisconnected {
		c.mu.Unlock()
		return
	}
	c.status = s
	fn := c.onStatus
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
