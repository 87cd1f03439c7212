package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

const (
	// MaxConcurrentRequests limits concurrent API requests to avoid overwhelming the API
	MaxConcurrentRequests = 5
	// RequestsPerSecond is the sustained request rate allowed per client
	RequestsPerSecond = 10
	// DefaultPageSize is the default number of items per page
	DefaultPageSize = 100
	// MaxPages bounds pagination loops
	MaxPages = 10
)

// HTTPClient interface for HTTP operations (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// BaseClient contains common fields and functionality for the REST API clients.
type BaseClient struct {
	BaseURL    string
	HTTPClient HTTPClient
	Semaphore  chan struct{} // Limits concurrent requests
	Limiter    *rate.Limiter

	// Authorize sets the platform-specific authentication headers.
	Authorize func(req *http.Request)
}

// NewBaseClient creates a new base client with concurrency and rate limiting.
func NewBaseClient(baseURL string, httpClient HTTPClient, authorize func(req *http.Request)) *BaseClient {
	return &BaseClient{
		BaseURL:    baseURL,
		HTTPClient: httpClient,
		Semaphore:  make(chan struct{}, MaxConcurrentRequests),
		Limiter:    rate.NewLimiter(rate.Limit(RequestsPerSecond), MaxConcurrentRequests),
		Authorize:  authorize,
	}
}

// GetJSON performs a rate limited GET request and decodes the JSON response into result.
func (c *BaseClient) GetJSON(ctx context.Context, url string, result interface{}) error {
	select {
	case c.Semaphore <- struct{}{}:
		defer func() { <-c.Semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Authorize != nil {
		c.Authorize(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
