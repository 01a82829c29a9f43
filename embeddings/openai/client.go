// Package openai embeds text through the OpenAI embeddings API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	embeddingsEndpoint = "/embeddings"
	defaultModel       = "text-embedding-3-small"
	defaultHTTPTimeout = 30 * time.Second
)

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, for proxies and compatible servers.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithAPIKey sets the bearer token. An empty key falls back to the
// OPENAI_API_KEY environment variable.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		if apiKey != "" {
			c.APIKey = apiKey
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

// Client talks to the OpenAI embeddings API and satisfies the
// embeddings.Embedder contract.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// New creates an OpenAI embedding client for the given model.
func New(model string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    defaultBaseURL,
		Model:      model,
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	return c
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// EmbedDocuments embeds texts in one upstream call. Results are placed by the
// index the API reports, so the output stays positional with the input.
func (c *Client) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("openai: no input texts")
	}
	payload, err := json.Marshal(embeddingRequest{Model: c.Model, Input: docs})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+embeddingsEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.APIKey)

	response, err := c.HTTPClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("openai: send request: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.NewDecoder(response.Body).Decode(&apiErr)
		if apiErr.Error.Message != "" {
			return nil, fmt.Errorf("openai: API error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("openai: API error: %s", response.Status)
	}
	var out embeddingResponse
	if err := json.NewDecoder(response.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(out.Data) != len(docs) {
		return nil, fmt.Errorf("openai: got %d embeddings for %d inputs", len(out.Data), len(docs))
	}
	vectors := make([][]float32, len(docs))
	for _, item := range out.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// EmbedQuery embeds a single text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
