package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/usecase"
)

// Client is the HTTP client for the operator API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ban bans a recent reply of botID in groupID
func (c *Client) Ban(ctx context.Context, req BanRequest) (bool, error) {
	var result BanResponse
	if err := c.post(ctx, "/api/ban", req, &result); err != nil {
		return false, err
	}
	return result.Banned, nil
}

// Sync flushes the engine caches to storage
func (c *Client) Sync(ctx context.Context) error {
	return c.post(ctx, "/api/sync", struct{}{}, nil)
}

// Clearup prunes stale contexts
func (c *Client) Clearup(ctx context.Context) (*ClearupResponse, error) {
	var result ClearupResponse
	if err := c.post(ctx, "/api/clearup", struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateGlobalBlacklist recomputes the cross-group blacklist
func (c *Client) UpdateGlobalBlacklist(ctx context.Context) error {
	return c.post(ctx, "/api/blacklist/global", struct{}{}, nil)
}

// Stats returns the engine working-set snapshot
func (c *Client) Stats(ctx context.Context) (*usecase.Stats, error) {
	var result usecase.Stats
	if err := c.get(ctx, "/api/stats", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Samples returns one sampled recent message per group
func (c *Client) Samples(ctx context.Context) (map[string]Message, error) {
	var result struct {
		Samples map[string]Message `json:"samples"`
	}
	if err := c.get(ctx, "/api/samples", &result); err != nil {
		return nil, err
	}
	return result.Samples, nil
}

// ============ HTTP Helpers ============

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, "GET", result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "POST", result)
}

func (c *Client) do(req *http.Request, method string, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
