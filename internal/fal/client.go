// Package fal is the HTTP client for the fal.ai queue API, the remote
// 3D-generation provider.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/meshcraft/backend/internal/reconcile"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://queue.fal.run"
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

var _ reconcile.Provider = (*Client)(nil)

type submitResponse struct {
	RequestID string `json:"request_id"`
}

// Submit enqueues a generation and returns the remote request handle.
func (c *Client) Submit(ctx context.Context, endpoint string, input map[string]any) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	var out submitResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	if out.RequestID == "" {
		return "", fmt.Errorf("submit to %s returned no request_id", endpoint)
	}
	return out.RequestID, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

// Status returns the remote queue state for a request.
func (c *Client) Status(ctx context.Context, endpoint, requestID string) (reconcile.State, error) {
	url := fmt.Sprintf("%s/%s/requests/%s/status", c.baseURL, endpoint, requestID)
	var out statusResponse
	if err := c.do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return "", err
	}
	switch out.Status {
	case "IN_QUEUE":
		return reconcile.StateQueued, nil
	case "IN_PROGRESS":
		return reconcile.StateInProgress, nil
	case "COMPLETED":
		return reconcile.StateCompleted, nil
	default:
		return "", fmt.Errorf("unknown remote status %q", out.Status)
	}
}

// Result fetches the finished request and extracts the output asset URL.
func (c *Client) Result(ctx context.Context, endpoint, requestID string) (*reconcile.ResultPayload, error) {
	url := fmt.Sprintf("%s/%s/requests/%s", c.baseURL, endpoint, requestID)
	var raw map[string]any
	if err := c.do(ctx, http.MethodGet, url, nil, &raw); err != nil {
		return nil, err
	}
	assetURL := extractAssetURL(raw)
	if assetURL == "" {
		return nil, fmt.Errorf("no asset url in result for request %s", requestID)
	}
	return &reconcile.ResultPayload{AssetURL: assetURL, Raw: raw}, nil
}

// extractAssetURL probes the known result shapes in order. Different fal
// model endpoints nest the mesh URL differently.
func extractAssetURL(raw map[string]any) string {
	if m, ok := raw["model_mesh"].(map[string]any); ok {
		if u, ok := m["url"].(string); ok && u != "" {
			return u
		}
	}
	if u, ok := raw["model_url"].(string); ok && u != "" {
		return u
	}
	if m, ok := raw["model_urls"].(map[string]any); ok {
		if u, ok := m["glb"].(string); ok && u != "" {
			return u
		}
	}
	if m, ok := raw["output"].(map[string]any); ok {
		if u, ok := m["url"].(string); ok && u != "" {
			return u
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, url string, body *bytes.Reader, out any) error {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return reconcile.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fal API returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
