package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client implements Retriever against a knowledge service exposing
// POST {base}/api/v1/collections/{name}/query.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a retrieval client with a 30s default timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Query runs a similarity search against the named collection.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if req.Collection == "" {
		return nil, fmt.Errorf("knowledge query: collection name is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/api/v1/collections/%s/query", c.baseURL, url.PathEscape(req.Collection))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("knowledge query %s: build request: %w", req.Collection, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("knowledge query %s: %w", req.Collection, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("knowledge query %s: status %d: %s", req.Collection, resp.StatusCode, string(msg))
	}

	var out QueryResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
		return nil, fmt.Errorf("knowledge query %s: decode response: %w", req.Collection, decodeErr)
	}
	return &out, nil
}

// HealthCheck calls GET {base}/health and returns nil on 200.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("knowledge healthcheck: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("knowledge healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("knowledge healthcheck: status %d", resp.StatusCode)
	}
	return nil
}
