package chatclient

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// HistorySource fetches the ordered history of a session.
type HistorySource interface {
	History(ctx context.Context, sessionID string) ([]Turn, error)
}

// StreamEndpoint resolves the websocket URL of a session.
type StreamEndpoint interface {
	StreamURL(sessionID string) (string, error)
}

type BindingConfig struct {
	History  HistorySource
	Endpoint StreamEndpoint
	// Dialer is optional; websocket.DefaultDialer is used when nil.
	Dialer *websocket.Dialer
	Logger zerolog.Logger
}

// Binding owns the current Connection and Accumulator and swaps them on session changes.
//
// Every activation bumps a generation counter. Events from connections of older generations
// are dropped, so fragments that arrive after a switch never reach the new session's turns.
type Binding struct {
	history  HistorySource
	endpoint StreamEndpoint
	dialer   *websocket.Dialer
	log      zerolog.Logger

	mu           sync.Mutex
	gen          uint64
	version      uint64
	sessionID    string
	conn         *Connection
	acc          *Accumulator
	connectivity Status
	lastActivity time.Time
	closed       bool

	notifyMu     sync.Mutex
	lastNotified uint64
	subs         map[int]func(State)
	nextSubID    int
}

func NewBinding(cfg BindingConfig) (*Binding, error) {
	if cfg.History == nil {
		return nil, errors.New("binding history source is nil")
	}
	if cfg.Endpoint == nil {
		return nil, errors.New("binding stream endpoint is nil")
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Binding{
		history:      cfg.History,
		endpoint:     cfg.Endpoint,
		dialer:       dialer,
		log:          cfg.Logger.With().Str("component", "chatclient").Logger(),
		acc:          NewAccumulator(),
		connectivity: StatusDisconnected,
		subs:         map[int]func(State){},
	}, nil
}

// Activate makes sessionID the active session.
//
// The previous connection is closed before the new one is dialed. History fetch failures
// degrade to an empty history and dial failures surface as StatusDisconnected; neither is
// returned as an error. Activate only fails on an empty session id or a closed binding.
func (b *Binding) Activate(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("missing session id")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("binding is closed")
	}
	b.gen++
	gen := b.gen
	old := b.conn
	b.conn = nil
	b.sessionID = sessionID
	b.acc = NewAccumulator()
	b.connectivity = StatusConnecting
	b.version++
	b.mu.Unlock()

	logger := b.log.With().Str("session_id", sessionID).Uint64("generation", gen).Logger()
	if old != nil {
		logger.Debug().Str("previous_session_id", old.SessionID).Msg("closing previous connection")
		_ = old.Close()
	}
	b.notify()

	history, err := b.history.History(ctx, sessionID)
	if err != nil {
		logger.Warn().Err(err).Msg("history fetch failed, starting with empty history")
		history = nil
	}

	url, err := b.endpoint.StreamURL(sessionID)
	if err != nil {
		logger.Warn().Err(err).Msg("could not resolve stream url")
	}

	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		logger.Debug().Msg("activation superseded before connecting")
		return nil
	}
	b.acc.Seed(history)
	b.version++
	var conn *Connection
	if url != "" {
		conn = NewConnection(url, sessionID, WithDialer(b.dialer), WithConnectionLogger(b.log))
		b.conn = conn
	} else {
		b.connectivity = StatusDisconnected
	}
	b.mu.Unlock()
	b.notify()

	if conn == nil {
		return nil
	}

	conn.OnFragment(func(fragment string) {
		b.handleFragment(gen, conn, fragment)
	})
	conn.OnStatus(func(Status) {
		b.handleStatus(gen, conn)
	})
	if err := conn.Open(ctx); err != nil {
		logger.Debug().Err(err).Msg("activation finished without a live connection")
	}

	b.mu.Lock()
	superseded := gen != b.gen
	b.mu.Unlock()
	if superseded {
		_ = conn.Close()
	}
	return nil
}

// Deactivate closes the current connection and discards the conversation state.
func (b *Binding) Deactivate() {
	b.mu.Lock()
	b.gen++
	old := b.conn
	b.conn = nil
	b.sessionID = ""
	b.acc = NewAccumulator()
	b.connectivity = StatusDisconnected
	b.version++
	b.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	b.notify()
}

// Close deactivates the binding for good. Further activations fail.
func (b *Binding) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	b.Deactivate()
	return nil
}

// Send echoes text as a user turn and then transmits it. It is a no-op unless connected.
func (b *Binding) Send(text string) bool {
	b.mu.Lock()
	conn := b.conn
	if b.closed || conn == nil || b.connectivity != StatusConnected {
		b.mu.Unlock()
		return false
	}
	b.acc.AppendUserTurn(text)
	b.lastActivity = time.Now()
	b.version++
	b.mu.Unlock()
	b.notify()

	return conn.Send(text)
}

func (b *Binding) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Binding) stateLocked() State {
	return State{
		SessionID:     b.sessionID,
		Turns:         b.acc.Turns(),
		Connectivity:  b.connectivity,
		AwaitingReply: b.acc.AwaitingReply(),
		Version:       b.version,
	}
}

// LastActivity is the time of the last send or received fragment on the active session.
func (b *Binding) LastActivity() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastActivity
}

// Subscribe registers fn for state snapshots. Snapshots are delivered in version order.
// fn runs on the goroutine that caused the change and must not call back into the binding.
func (b *Binding) Subscribe(fn func(State)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	b.notifyMu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subs[id] = fn
	b.notifyMu.Unlock()
	return func() {
		b.notifyMu.Lock()
		delete(b.subs, id)
		b.notifyMu.Unlock()
	}
}

func (b *Binding) current() *Connection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *Binding) handleFragment(gen uint64, conn *Connection, fragment string) {
	b.mu.Lock()
	if gen != b.gen || b.conn != conn || b.connectivity != StatusConnected {
		b.mu.Unlock()
		b.log.Debug().Str("conn_id", conn.ID).Int("len", len(fragment)).Msg("dropping stale fragment")
		return
	}
	b.acc.Append(fragment)
	b.lastActivity = time.Now()
	b.version++
	b.mu.Unlock()
	b.notify()
}

func (b *Binding) handleStatus(gen uint64, conn *Connection) {
	b.mu.Lock()
	if gen != b.gen || b.conn != conn {
		b.mu.Unlock()
		return
	}
	// read the live status instead of the event payload; transitions may race
	s := conn.Status()
	if s == b.connectivity {
		b.mu.Unlock()
		return
	}
	b.connectivity = s
	if s == StatusDisconnected {
		b.acc.Interrupt()
	}
	b.version++
	b.mu.Unlock()

	b.log.Debug().Str("session_id", conn.SessionID).Str("status", string(s)).Msg("connectivity changed")
	b.notify()
}

func (b *Binding) notify() {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	st := b.State()
	if st.Version <= b.lastNotified {
		return
	}
	b.lastNotified = st.Version
	for _, fn := range b.subs {
		fn(st)
	}
}
