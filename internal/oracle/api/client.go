// Package api implements the oracle over a plain HTTP categorization
// endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drewdunne/prbounty/internal/config"
	"github.com/drewdunne/prbounty/internal/oracle"
)

// Ensure Client implements oracle.Client.
var _ oracle.Client = (*Client)(nil)

func init() {
	oracle.Register(oracle.StrategyAPI, func(_ context.Context, cfg config.OracleConfig) (oracle.Client, error) {
		opts := []Option{}
		if cfg.MaxRetries > 0 {
			opts = append(opts, WithRetries(cfg.MaxRetries))
		}
		if cfg.Model != "" {
			opts = append(opts, WithModel(cfg.Model))
		}
		return New(cfg.BaseURL, cfg.APIKey, opts...), nil
	})
}

// Client posts categorization requests to {baseURL}/categorize.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
}

// Option configures the API client.
type Option func(*Client)

// WithRetries sets how many times a 5xx or transport failure is retried
// after the first attempt.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithModel names the model the service should use.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// New creates an API oracle client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type categorizeRequest struct {
	Model string `json:"model,omitempty"`
	oracle.Request
}

// Categorize sends the request and returns the raw response body.
func (c *Client) Categorize(ctx context.Context, r oracle.Request) ([]byte, error) {
	reqJSON, err := json.Marshal(categorizeRequest{Model: c.model, Request: r})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/categorize", bytes.NewReader(reqJSON))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("making request: %w", err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("oracle error (status %d): %s", resp.StatusCode, body)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("oracle error (status %d): %s", resp.StatusCode, body)
		}

		if readErr != nil {
			return nil, fmt.Errorf("reading response: %w", readErr)
		}
		return body, nil
	}

	return nil, lastErr
}
