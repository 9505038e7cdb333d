package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pathlearn/roadmap-engine/internal/models"
)

// Client is a Go SDK for the roadmap-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new roadmap-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ListRoadmaps retrieves summaries of all known roadmaps
func (c *Client) ListRoadmaps(ctx context.Context) ([]models.RoadmapSummary, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/roadmaps", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Roadmaps []models.RoadmapSummary `json:"roadmaps"`
			Total    int                     `json:"total"`
		} `json:"data"`
		Error *apiError `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data.Roadmaps, nil
}

// GetRoadmap retrieves a roadmap graph. When userID is non-empty the
// exercises carry the user's completed flags.
func (c *Client) GetRoadmap(ctx context.Context, id, userID string) (*models.RoadmapGraph, error) {
	path := fmt.Sprintf("/api/v1/roadmaps/%s", url.PathEscape(id))
	if userID != "" {
		path += "?user_id=" + url.QueryEscape(userID)
	}

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Roadmap *models.RoadmapGraph `json:"roadmap"`
		} `json:"data"`
		Error *apiError `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data.Roadmap, nil
}

// GetProgress retrieves a user's progress report for a roadmap
func (c *Client) GetProgress(ctx context.Context, roadmapID, userID string) (*models.ProgressReport, error) {
	path := fmt.Sprintf("/api/v1/roadmaps/%s/progress?user_id=%s",
		url.PathEscape(roadmapID), url.QueryEscape(userID))

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                   `json:"success"`
		Data    *models.ProgressReport `json:"data"`
		Error   *apiError              `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// Toggle marks an exercise completed or uncompleted for a user and returns
// the settled progress report
func (c *Client) Toggle(ctx context.Context, roadmapID string, req models.ToggleRequest) (*models.ProgressReport, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	path := fmt.Sprintf("/api/v1/roadmaps/%s/toggle", url.PathEscape(roadmapID))
	resp, err := c.doRequest(ctx, "POST", path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                   `json:"success"`
		Data    *models.ProgressReport `json:"data"`
		Error   *apiError              `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// RefreshUser drops the server-side cached completion state for a user
func (c *Client) RefreshUser(ctx context.Context, userID string) error {
	path := fmt.Sprintf("/api/v1/users/%s/refresh", url.PathEscape(userID))
	resp, err := c.doRequest(ctx, "POST", path, nil)
	if err != nil {
		return err
	}

	var result struct {
		Success bool      `json:"success"`
		Error   *apiError `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", nil)
	return err
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
