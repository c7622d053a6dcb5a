// Package api is a thin JSON client for the team API at api.ecs.rocks.
// Each Client is bound to one method path; calls default to POST with a
// JSON body and decode the JSON response.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// DefaultBaseURL is where the team API lives.
const DefaultBaseURL = "https://api.ecs.rocks"

// Client calls one method path on the team API.
type Client struct {
	baseURL string
	path    string
	http    *http.Client
}

// Request is one call. Zero values mean POST with default JSON headers.
type Request struct {
	Verb    string
	Payload any

	// Headers, when non-nil, replaces the default header set entirely
	// (so a caller can drop the JSON content type if it has to).
	Headers map[string]string
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Body)
}

// New builds a Client for a method path, e.g. "/v1/devices".
func New(methodPath string) *Client {
	return NewWithBaseURL(DefaultBaseURL, methodPath)
}

// NewWithBaseURL is New against a different host, which is how tests point
// at an httptest server.
func NewWithBaseURL(baseURL, methodPath string) *Client {
	return &Client{
		baseURL: baseURL,
		path:    methodPath,
		http:    http.DefaultClient,
	}
}

// Do performs the call and decodes the JSON response. Every request gets a
// fresh X-Request-Id so the API side can correlate logs.
func (c *Client) Do(ctx context.Context, r Request) (map[string]any, error) {
	verb := r.Verb
	if verb == "" {
		verb = http.MethodPost
	}

	b, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("api: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, verb, c.baseURL+c.path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}

	if r.Headers == nil {
		req.Header.Set("Content-Type", "application/json")
	} else {
		for k, v := range r.Headers {
			req.Header.Set(k, v)
		}
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", verb, c.path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("api: read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &APIError{StatusCode: res.StatusCode, Body: string(raw)}
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("api: decode response: %w", err)
	}
	return out, nil
}
