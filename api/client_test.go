package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method  string
	path    string
	headers http.Header
	body    map[string]any
}

func newTestServer(t *testing.T, status int, response string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&rec.body)

		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestDo_DefaultsToPOSTWithJSON(t *testing.T) {
	srv, rec := newTestServer(t, 200, `{"status": "ok", "count": 3}`)
	c := NewWithBaseURL(srv.URL, "/v1/devices")

	out, err := c.Do(context.Background(), Request{
		Payload: map[string]any{"deviceid": "123456"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/v1/devices", rec.path)
	assert.Equal(t, "application/json", rec.headers.Get("Content-Type"))
	assert.Equal(t, map[string]any{"deviceid": "123456"}, rec.body)

	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, float64(3), out["count"])
}

func TestDo_RequestIDAlwaysSet(t *testing.T) {
	srv, rec := newTestServer(t, 200, `{}`)
	c := NewWithBaseURL(srv.URL, "/v1/ping")

	_, err := c.Do(context.Background(), Request{})
	require.NoError(t, err)
	first := rec.headers.Get("X-Request-Id")
	assert.NotEmpty(t, first)

	_, err = c.Do(context.Background(), Request{})
	require.NoError(t, err)
	assert.NotEqual(t, first, rec.headers.Get("X-Request-Id"))
}

func TestDo_CustomHeadersReplaceDefaults(t *testing.T) {
	srv, rec := newTestServer(t, 200, `{}`)
	c := NewWithBaseURL(srv.URL, "/v1/devices")

	_, err := c.Do(context.Background(), Request{
		Headers: map[string]string{"Authorization": "Bearer tok"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", rec.headers.Get("Authorization"))
	assert.Empty(t, rec.headers.Get("Content-Type"))
}

func TestDo_ExplicitVerb(t *testing.T) {
	srv, rec := newTestServer(t, 200, `{}`)
	c := NewWithBaseURL(srv.URL, "/v1/devices")

	_, err := c.Do(context.Background(), Request{Verb: http.MethodGet})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, rec.method)
}

func TestDo_NonSuccessStatus(t *testing.T) {
	srv, _ := newTestServer(t, 503, `{"error": "maintenance"}`)
	c := NewWithBaseURL(srv.URL, "/v1/devices")

	_, err := c.Do(context.Background(), Request{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "maintenance")
}

func TestDo_MalformedResponse(t *testing.T) {
	srv, _ := newTestServer(t, 200, `not json`)
	c := NewWithBaseURL(srv.URL, "/v1/devices")

	_, err := c.Do(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestNew_UsesDefaultBaseURL(t *testing.T) {
	c := New("/v1/devices")
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, "/v1/devices", c.path)
}
