// Package ollama embeds text through the Ollama /api/embed endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "http://localhost:11434"
	embedEndpoint      = "/api/embed"
	defaultHTTPTimeout = 30 * time.Second
)

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the Ollama endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.HTTPClient = client
		}
	}
}

// Client talks to a local or remote Ollama instance and satisfies the
// embeddings.Embedder contract.
type Client struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// New creates an Ollama embedding client for the given model.
func New(model string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    defaultBaseURL,
		Model:      model,
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error"`
}

// EmbedDocuments embeds texts in one upstream call; the result is positional
// with the input.
func (c *Client) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	if c.Model == "" {
		return nil, fmt.Errorf("ollama: model is required")
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("ollama: no input texts")
	}
	payload, err := json.Marshal(embedRequest{Model: c.Model, Input: docs})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+embedEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.HTTPClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("ollama: send request: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(response.Body)
		return nil, fmt.Errorf("ollama: API error: %s", strings.TrimSpace(string(body)))
	}
	var out embedResponse
	if err := json.NewDecoder(response.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ollama: API error: %s", out.Error)
	}
	if len(out.Embeddings) != len(docs) {
		return nil, fmt.Errorf("ollama: got %d embeddings for %d inputs", len(out.Embeddings), len(docs))
	}
	return out.Embeddings, nil
}

// EmbedQuery embeds a single text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
