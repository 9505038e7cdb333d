package completion

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

// HTTPStore implements Store against an upstream JSON/HTTP backend for
// deployments where completion state lives in a managed service instead of
// the engine's own database.
type HTTPStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// HTTPStoreOption configures the store
type HTTPStoreOption func(*HTTPStore)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) HTTPStoreOption {
	return func(s *HTTPStore) {
		s.httpClient = client
	}
}

// NewHTTPStore creates a store talking to the given backend
func NewHTTPStore(baseURL, apiKey string, opts ...HTTPStoreOption) *HTTPStore {
	s := &HTTPStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type completionPayload struct {
	UserID     string `json:"user_id"`
	ExerciseID string `json:"exercise_id"`
}

type completionResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ExerciseIDs []string `json:"exercise_ids"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Completed fetches the user's completed exercise ids
func (s *HTTPStore) Completed(ctx context.Context, userID string) (models.CompletionSet, error) {
	path := fmt.Sprintf("/v1/users/%s/completions", url.PathEscape(userID))
	return s.roundTrip(ctx, http.MethodGet, path, nil)
}

// MarkCompleted records a completion upstream
func (s *HTTPStore) MarkCompleted(ctx context.Context, userID, exerciseID string) (models.CompletionSet, error) {
	body, err := json.Marshal(completionPayload{UserID: userID, ExerciseID: exerciseID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	path := fmt.Sprintf("/v1/users/%s/completions", url.PathEscape(userID))
	return s.roundTrip(ctx, http.MethodPost, path, bytes.NewReader(body))
}

// MarkUncompleted removes a completion upstream
func (s *HTTPStore) MarkUncompleted(ctx context.Context, userID, exerciseID string) (models.CompletionSet, error) {
	path := fmt.Sprintf("/v1/users/%s/completions/%s",
		url.PathEscape(userID), url.PathEscape(exerciseID))
	return s.roundTrip(ctx, http.MethodDelete, path, nil)
}

// roundTrip performs the request and maps transport and status failures
// onto the store error taxonomy
func (s *HTTPStore) roundTrip(ctx context.Context, method, path string, body io.Reader) (models.CompletionSet, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		// The upstream envelope distinguishes which record was missing
		var result completionResponse
		if err := json.Unmarshal(respBody, &result); err == nil && result.Error != nil {
			if result.Error.Code == "exercise_not_found" {
				return nil, ErrExerciseNotFound
			}
		}
		return nil, ErrUserNotFound
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrStoreUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("completion store rejected request: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result completionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrStoreUnavailable, err)
	}

	if !result.Success && result.Error != nil {
		return nil, fmt.Errorf("completion store error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return models.NewCompletionSet(result.Data.ExerciseIDs...), nil
}
