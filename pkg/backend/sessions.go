package backend

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/localmind/pkg/chatclient"
)

// Session is the backend's conversation record. CreatedAt is in unix seconds.
type Session struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	CreatedAt int64  `json:"created_at" yaml:"created_at"`
}

func (s Session) Created() time.Time {
	return time.Unix(s.CreatedAt, 0)
}

// DisplayTitle falls back to "New Chat" for untitled sessions.
func (s Session) DisplayTitle() string {
	if strings.TrimSpace(s.Title) == "" {
		return "New Chat"
	}
	return s.Title
}

func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	sessions := []Session{}
	if err := c.do(ctx, http.MethodGet, []string{"sessions"}, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) CreateSession(ctx context.Context, title string) (*Session, error) {
	req := struct {
		Title string `json:"title,omitempty"`
	}{Title: title}
	var s Session
	if err := c.do(ctx, http.MethodPost, []string{"sessions"}, req, &s); err != nil {
		return nil, err
	}
	if s.ID == "" {
		return nil, errors.New("backend returned a session without id")
	}
	return &s, nil
}

// History returns the ordered turns of a session exactly as the backend stores them.
func (c *Client) History(ctx context.Context, sessionID string) ([]chatclient.Turn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("missing session id")
	}
	turns := []chatclient.Turn{}
	if err := c.do(ctx, http.MethodGet, []string{"sessions", sessionID, "history"}, nil, &turns); err != nil {
		return nil, errors.Wrapf(err, "fetch history of %s", sessionID)
	}
	return turns, nil
}

// ClearHistory drops the stored history of a session.
func (c *Client) ClearHistory(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("missing session id")
	}
	return c.do(ctx, http.MethodDelete, []string{"memory", sessionID}, nil, nil)
}
