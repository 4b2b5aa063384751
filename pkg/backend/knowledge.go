package backend

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/localmind/pkg/chatclient"
)

// DefaultSearchLimit is the number of facts the backend returns when no limit is given.
const DefaultSearchLimit = 3

// SearchKnowledge returns the stored facts closest to query, best match first.
// A limit <= 0 uses DefaultSearchLimit.
func (c *Client) SearchKnowledge(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("missing query")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	req := struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}{Query: query, Limit: limit}
	var resp struct {
		Results []string `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, []string{"knowledge", "search"}, req, &resp); err != nil {
		return nil, errors.Wrap(err, "search knowledge")
	}
	if resp.Results == nil {
		resp.Results = []string{}
	}
	return resp.Results, nil
}

// AddKnowledge stores text as a new fact in the backend's knowledge base.
func (c *Client) AddKnowledge(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("missing text")
	}
	req := struct {
		Text string `json:"text"`
	}{Text: text}
	if err := c.do(ctx, http.MethodPost, []string{"knowledge", "add"}, req, nil); err != nil {
		return errors.Wrap(err, "add knowledge")
	}
	return nil
}

// Memory returns the turns the backend keeps as conversational memory for a session. This is
// the store ClearHistory empties.
func (c *Client) Memory(ctx context.Context, sessionID string) ([]chatclient.Turn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("missing session id")
	}
	turns := []chatclient.Turn{}
	if err := c.do(ctx, http.MethodGet, []string{"memory", sessionID}, nil, &turns); err != nil {
		return nil, errors.Wrapf(err, "fetch memory of %s", sessionID)
	}
	return turns, nil
}
