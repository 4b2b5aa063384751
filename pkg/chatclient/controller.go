package chatclient

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrDisconnected is returned by WaitIdle when the active session loses its connection.
var ErrDisconnected = errors.New("session disconnected")

// Controller is the surface presentation code talks to. It never mutates state itself;
// everything goes through the Binding.
type Controller struct {
	binding *Binding
}

func NewController(b *Binding) *Controller {
	return &Controller{binding: b}
}

func (c *Controller) Activate(ctx context.Context, sessionID string) error {
	return c.binding.Activate(ctx, sessionID)
}

func (c *Controller) Deactivate() {
	c.binding.Deactivate()
}

func (c *Controller) Close() error {
	return c.binding.Close()
}

func (c *Controller) State() State {
	return c.binding.State()
}

func (c *Controller) SessionID() string {
	return c.binding.State().SessionID
}

// Turns returns a copy of the active conversation's turns.
func (c *Controller) Turns() []Turn {
	return c.binding.State().Turns
}

func (c *Controller) Connectivity() Status {
	return c.binding.State().Connectivity
}

func (c *Controller) AwaitingReply() bool {
	return c.binding.State().AwaitingReply
}

// Send appends text as a user turn and then transmits it over the current connection.
// When the session is not connected nothing happens and false is returned.
func (c *Controller) Send(text string) bool {
	return c.binding.Send(text)
}

func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	return c.binding.Subscribe(fn)
}

// WaitIdle blocks until no reply is pending and nothing has been streamed for idle.
//
// The backend does not mark the end of a reply, so a quiet period is the only completion signal.
// While a reply is awaited no deadline applies; use ctx to bound the wait.
func (c *Controller) WaitIdle(ctx context.Context, idle time.Duration) error {
	changes := make(chan State, 1)
	cancel := c.Subscribe(func(s State) {
		select {
		case <-changes:
		default:
		}
		changes <- s
	})
	defer cancel()

	st := c.State()
	if st.Connectivity == StatusDisconnected {
		return ErrDisconnected
	}

	timer := time.NewTimer(idle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st = <-changes:
			if st.Connectivity == StatusDisconnected {
				return ErrDisconnected
			}
			timer.Reset(idle)
		case <-timer.C:
			if !st.AwaitingReply && st.Connectivity == StatusConnected {
				return nil
			}
			timer.Reset(idle)
		}
	}
}
