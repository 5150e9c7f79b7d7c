package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopcore/stockengine/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// APIClient sends requests straight into an http.Handler.
type APIClient struct {
	t       *testing.T
	handler http.Handler
	bearer  string
}

// NewAPIClient creates a client for handler.
func NewAPIClient(t *testing.T, handler http.Handler) *APIClient {
	return &APIClient{t: t, handler: handler}
}

// WithToken returns a copy of the client that sends a bearer token.
func (c *APIClient) WithToken(token string) *APIClient {
	cp := *c
	cp.bearer = token
	return &cp
}

// Do sends body encoded as JSON. A nil body sends no payload.
func (c *APIClient) Do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		reader = ToJSONReader(c.t, body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

// Get is Do with GET.
func (c *APIClient) Get(path string) *httptest.ResponseRecorder {
	c.t.Helper()
	return c.Do(http.MethodGet, path, nil)
}

// Post is Do with POST.
func (c *APIClient) Post(path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	return c.Do(http.MethodPost, path, body)
}

type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

// DecodeData checks the status and a successful envelope, then returns its
// data decoded as T.
func DecodeData[T any](t *testing.T, w *httptest.ResponseRecorder, wantStatus int) T {
	t.Helper()

	require.Equal(t, wantStatus, w.Code, "unexpected status, body: %s", w.Body.String())
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to parse JSON response")
	require.True(t, env.Success, "expected success, body: %s", w.Body.String())
	return env.Data
}

// AssertError checks the status and error code of a failed response.
func AssertError(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()

	assert.Equal(t, wantStatus, w.Code, "unexpected status, body: %s", w.Body.String())
	var env envelope[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to parse JSON response")
	assert.False(t, env.Success)
	if assert.NotNil(t, env.Error, "Expected error object in response") {
		assert.Equal(t, wantCode, env.Error.Code)
	}
}

// ToJSONReader converts a value to a JSON io.Reader.
func ToJSONReader(t *testing.T, v interface{}) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, "Failed to marshal to JSON")
	return bytes.NewReader(data)
}
