// Package backend is the REST client for the localmind backend: session metadata, history,
// model administration and the websocket endpoint used for streaming.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/localmind/pkg/chatclient"
)

const DefaultBaseURL = "http://localhost:8000"

// maxErrorBody bounds how much of a failed response body is kept in an APIError.
const maxErrorBody = 4096

// APIError is returned for non-2xx responses and for error payloads the backend sends with a 200.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsNotFound reports whether err is an APIError with a 404 status.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Config struct {
	BaseURL string
	// Timeout applies to REST calls only; the streaming link has no deadline.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
	}
}

// Client talks to the backend REST surface. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	log        zerolog.Logger
}

var (
	_ chatclient.HistorySource  = (*Client)(nil)
	_ chatclient.StreamEndpoint = (*Client)(nil)
)

func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse backend url %q", raw)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("backend url %q must use http or https", raw)
	}
	if base.Host == "" {
		return nil, errors.Errorf("backend url %q has no host", raw)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Client{
		base:       base,
		httpClient: httpClient,
		log:        logger.With().Str("component", "backend").Logger(),
	}, nil
}

func (c *Client) BaseURL() string {
	return c.base.String()
}

// StreamURL returns the websocket URL of a session: ws(s)://host/ws/chat/{id}.
func (c *Client) StreamURL(sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", errors.New("missing session id")
	}
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u = *u.JoinPath("ws", "chat", sessionID)
	return u.String(), nil
}

func (c *Client) endpoint(segments ...string) string {
	return c.base.JoinPath(segments...).String()
}

// do performs a JSON request. body and out may be nil.
func (c *Client) do(ctx context.Context, method string, path []string, body any, out any) error {
	target := c.endpoint(path...)
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, req.URL.Path)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debug().
		Str("method", method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s response", req.URL.Path)
	}
	if apiErr := embeddedError(method, req.URL.Path, resp, data); apiErr != nil {
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s response", req.URL.Path)
	}
	return nil
}

// embeddedError detects `{"error": ..., "details": ...}` bodies returned with a success status.
func embeddedError(method, path string, resp *http.Response, data []byte) *APIError {
	var probe struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil || probe.Error == "" {
		return nil
	}
	body := probe.Error
	if probe.Details != "" {
		body += ": " + probe.Details
	}
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}
}

// Health is the payload of the backend root endpoint.
type Health struct {
	Status  string `json:"status" yaml:"status"`
	Service string `json:"service" yaml:"service"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
