package backend

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Model is an installed model as reported by the backend.
type Model struct {
	Name       string `json:"name" yaml:"name"`
	ModifiedAt string `json:"modified_at" yaml:"modified_at"`
	Size       int64  `json:"size" yaml:"size"`
}

type ModelList struct {
	Models      []Model `json:"models" yaml:"models"`
	ActiveModel string  `json:"active_model" yaml:"active_model"`
}

type modelRequest struct {
	Name string `json:"name"`
}

func (c *Client) ListModels(ctx context.Context) (*ModelList, error) {
	var ml ModelList
	if err := c.do(ctx, http.MethodGet, []string{"llm", "models"}, nil, &ml); err != nil {
		return nil, err
	}
	if ml.Models == nil {
		ml.Models = []Model{}
	}
	return &ml, nil
}

func (c *Client) ActiveModel(ctx context.Context) (string, error) {
	var resp struct {
		ActiveModel string `json:"active_model"`
	}
	if err := c.do(ctx, http.MethodGet, []string{"llm", "active"}, nil, &resp); err != nil {
		return "", err
	}
	return resp.ActiveModel, nil
}

func (c *Client) SetActiveModel(ctx context.Context, name string) error {
	name, err := modelName(name)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, []string{"llm", "active"}, modelRequest{Name: name}, nil)
}

// PullModel asks the backend to download a model. The backend pulls in the background and
// answers immediately; there is no progress reporting.
func (c *Client) PullModel(ctx context.Context, name string) error {
	name, err := modelName(name)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, []string{"llm", "pull"}, modelRequest{Name: name}, nil)
}

func (c *Client) DeleteModel(ctx context.Context, name string) error {
	name, err := modelName(name)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, []string{"llm", name}, nil, nil)
}

func modelName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("missing model name")
	}
	return name, nil
}
