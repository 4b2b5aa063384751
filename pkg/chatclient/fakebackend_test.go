package chatclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type inbound struct {
	sessionID string
	text      string
}

type serverConn struct {
	sessionID string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closed    chan struct{}
}

// fakeBackend speaks the backend's streaming protocol: one websocket per session at
// /ws/chat/{id}, raw text frames in both directions.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	conns    map[string][]*serverConn
	received chan inbound
	accepted chan string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		t:        t,
		conns:    map[string][]*serverConn{},
		received: make(chan inbound, 64),
		accepted: make(chan string, 16),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sc := &serverConn{sessionID: id, conn: conn, closed: make(chan struct{})}
		fb.mu.Lock()
		fb.conns[id] = append(fb.conns[id], sc)
		fb.mu.Unlock()
		fb.accepted <- id

		go func() {
			defer close(sc.closed)
			defer func() { _ = conn.Close() }()
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				fb.received <- inbound{sessionID: id, text: string(data)}
			}
		}()
	})
	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) StreamURL(sessionID string) (string, error) {
	return "ws" + strings.TrimPrefix(fb.srv.URL, "http") + "/ws/chat/" + sessionID, nil
}

func (fb *fakeBackend) latest(sessionID string) *serverConn {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	cs := fb.conns[sessionID]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

// push writes fragments to the most recent connection of sessionID.
func (fb *fakeBackend) push(sessionID string, fragments ...string) {
	fb.t.Helper()
	sc := fb.latest(sessionID)
	require.NotNil(fb.t, sc, "no server connection for %s", sessionID)
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	for _, f := range fragments {
		require.NoError(fb.t, sc.conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}
}

// drop closes the server side of the most recent connection of sessionID.
func (fb *fakeBackend) drop(sessionID string) {
	fb.t.Helper()
	sc := fb.latest(sessionID)
	require.NotNil(fb.t, sc)
	_ = sc.conn.Close()
}

func (fb *fakeBackend) expectReceived(sessionID, text string) {
	fb.t.Helper()
	select {
	case in := <-fb.received:
		require.Equal(fb.t, sessionID, in.sessionID)
		require.Equal(fb.t, text, in.text)
	case <-time.After(2 * time.Second):
		fb.t.Fatalf("timed out waiting for %q on %s", text, sessionID)
	}
}

// historyStub is an in-memory HistorySource.
type historyStub struct {
	mu      sync.Mutex
	history map[string][]Turn
	err     error
	calls   []string
}

func (h *historyStub) History(_ context.Context, sessionID string) ([]Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, sessionID)
	if h.err != nil {
		return nil, h.err
	}
	return cloneTurns(h.history[sessionID]), nil
}

type historyFunc func(ctx context.Context, sessionID string) ([]Turn, error)

func (f historyFunc) History(ctx context.Context, sessionID string) ([]Turn, error) {
	return f(ctx, sessionID)
}

type brokenEndpoint struct{}

func (brokenEndpoint) StreamURL(string) (string, error) {
	return "", errors.New("no stream endpoint")
}

func newTestBinding(t *testing.T, hs HistorySource, ep StreamEndpoint) *Binding {
	t.Helper()
	b, err := NewBinding(BindingConfig{History: hs, Endpoint: ep, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func waitForState(t *testing.T, b *Binding, cond func(State) bool) State {
	t.Helper()
	var st State
	require.Eventually(t, func() bool {
		st = b.State()
		return cond(st)
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

// stalledBackend accepts chat sockets and never reads from them, so a large enough write
// blocks once the socket buffers fill up.
type stalledBackend struct {
	srv      *httptest.Server
	accepted chan string
}

func newStalledBackend(t *testing.T) *stalledBackend {
	t.Helper()
	sb := &stalledBackend{accepted: make(chan string, 16)}
	release := make(chan struct{})
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		sb.accepted <- r.PathValue("id")
		<-release
	})
	sb.srv = httptest.NewServer(mux)
	t.Cleanup(sb.srv.Close)
	t.Cleanup(func() { close(release) })
	return sb
}

func (sb *stalledBackend) StreamURL(sessionID string) (string, error) {
	return "ws" + strings.TrimPrefix(sb.srv.URL, "http") + "/ws/chat/" + sessionID, nil
}

// oversized returns a payload larger than any loopback socket buffer.
func oversized() string {
	return strings.Repeat("x", 64<<20)
}
