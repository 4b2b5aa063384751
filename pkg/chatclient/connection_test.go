package chatclient

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	r.statuses = append(r.statuses, s)
	r.mu.Unlock()
}

func (r *statusRecorder) get() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

type fragmentRecorder struct {
	mu        sync.Mutex
	fragments []string
}

func (r *fragmentRecorder) record(f string) {
	r.mu.Lock()
	r.fragments = append(r.fragments, f)
	r.mu.Unlock()
}

func (r *fragmentRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fragments...)
}

func newTestConnection(t *testing.T, fb *fakeBackend, sessionID string) *Connection {
	t.Helper()
	url, err := fb.StreamURL(sessionID)
	require.NoError(t, err)
	c := NewConnection(url, sessionID, WithConnectionLogger(zerolog.Nop()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnectionDeliversFragmentsInOrder(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestConnection(t, fb, "s1")

	frags := &fragmentRecorder{}
	statuses := &statusRecorder{}
	c.OnFragment(frags.record)
	c.OnStatus(statuses.record)

	require.NoError(t, c.Open(context.Background()))
	require.Equal(t, StatusConnected, c.Status())
	<-fb.accepted

	want := []string{"He", "llo", "", ", ", "world"}
	fb.push("s1", want...)

	require.Eventually(t, func() bool {
		return len(frags.get()) == len(want)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, frags.get())
	assert.Equal(t, []Status{StatusConnected}, statuses.get())
}

func TestConnectionSendTransmitsTextVerbatim(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestConnection(t, fb, "s1")
	require.NoError(t, c.Open(context.Background()))
	<-fb.accepted

	require.True(t, c.Send("  hi there \n"))
	fb.expectReceived("s1", "  hi there \n")
}

func TestConnectionSendBeforeOpenIsNoop(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestConnection(t, fb, "s1")

	require.False(t, c.Send("hi"))
	select {
	case in := <-fb.received:
		t.Fatalf("unexpected frame %q", in.text)
	default:
	}
}

func TestConnectionOpenFailureEndsDisconnected(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/s1"
	srv.Close()

	c := NewConnection(url, "s1", WithConnectionLogger(zerolog.Nop()))
	statuses := &statusRecorder{}
	c.OnStatus(statuses.record)

	err := c.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, []Status{StatusDisconnected}, statuses.get())
	assert.False(t, c.Send("hi"))

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not done after failed open")
	}
}

func TestConnectionCannotBeReopened(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestConnection(t, fb, "s1")
	require.NoError(t, c.Open(context.Background()))
	require.Error(t, c.Open(context.Background()))

	require.NoError(t, c.Close())
	require.Error(t, c.Open(context.Background()))
	require.Equal(t, StatusDisconnected, c.Status())
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	t.Run("never opened", func(t *testing.T) {
		c := NewConnection("ws://127.0.0.1:1/ws/chat/x", "x", WithConnectionLogger(zerolog.Nop()))
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())
		require.Equal(t, StatusDisconnected, c.Status())
		<-c.Done()
	})

	t.Run("opened", func(t *testing.T) {
		fb := newFakeBackend(t)
		c := newTestConnection(t, fb, "s1")
		statuses := &statusRecorder{}
		c.OnStatus(statuses.record)
		require.NoError(t, c.Open(context.Background()))
		<-fb.accepted

		_ = c.Close()
		_ = c.Close()
		require.Equal(t, StatusDisconnected, c.Status())
		require.Equal(t, []Status{StatusConnected, StatusDisconnected}, statuses.get())

		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("reader did not exit")
		}
		select {
		case <-fb.latest("s1").closed:
		case <-time.After(2 * time.Second):
			t.Fatal("server did not observe close")
		}
	})
}

func TestConnectionServerDropEndsDisconnected(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestConnection(t, fb, "s1")
	statuses := &statusRecorder{}
	c.OnStatus(statuses.record)
	require.NoError(t, c.Open(context.Background()))
	<-fb.accepted

	fb.drop("s1")

	require.Eventually(t, func() bool {
		return c.Status() == StatusDisconnected
	}, 2*time.Second, 5*time.Millisecond)
	<-c.Done()
	assert.Equal(t, []Status{StatusConnected, StatusDisconnected}, statuses.get())
	assert.False(t, c.Send("late"))
}

func TestConnectionDropsFragmentsAfterClose(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestConnection(t, fb, "s1")
	frags := &fragmentRecorder{}
	c.OnFragment(frags.record)
	require.NoError(t, c.Open(context.Background()))
	<-fb.accepted

	require.NoError(t, c.Close())
	<-c.Done()

	sc := fb.latest("s1")
	sc.writeMu.Lock()
	_ = sc.conn.WriteMessage(websocket.TextMessage, []byte("late"))
	sc.writeMu.Unlock()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, frags.get())
}

func TestConnectionCloseDoesNotWaitForBlockedSend(t *testing.T) {
	sb := newStalledBackend(t)
	url, err := sb.StreamURL("s1")
	require.NoError(t, err)
	c := NewConnection(url, "s1", WithConnectionLogger(zerolog.Nop()))
	require.NoError(t, c.Open(context.Background()))
	<-sb.accepted

	sent := make(chan bool, 1)
	payload := oversized()
	go func() { sent <- c.Send(payload) }()
	time.Sleep(200 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("Close blocked behind a pending Send")
	}

	select {
	case ok := <-sent:
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("Send did not return after Close")
	}
	assert.Equal(t, StatusDisconnected, c.Status())
}
