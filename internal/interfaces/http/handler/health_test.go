package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }

	t.Run("all components healthy", func(t *testing.T) {
		h := NewHealthHandler(map[string]HealthCheck{"database": ok, "redis": ok})
		engine := newTestEngine()
		engine.GET("/health", h.Health)

		w := doJSON(engine, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, resp.Components)
	})

	t.Run("one component down", func(t *testing.T) {
		h := NewHealthHandler(map[string]HealthCheck{
			"database": ok,
			"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
		})
		engine := newTestEngine()
		engine.GET("/health", h.Health)

		w := doJSON(engine, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "ok", resp.Components["database"])
		assert.Equal(t, "error", resp.Components["redis"])
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("checks get a deadline", func(t *testing.T) {
		var deadline bool
		h := NewHealthHandler(map[string]HealthCheck{"database": func(ctx context.Context) error {
			_, deadline = ctx.Deadline()
			return nil
		}})
		engine := newTestEngine()
		engine.GET("/health", h.Health)

		doJSON(engine, http.MethodGet, "/health", nil)
		assert.True(t, deadline)
	})

	t.Run("live ignores checks", func(t *testing.T) {
		h := NewHealthHandler(map[string]HealthCheck{
			"database": func(context.Context) error { return errors.New("down") },
		})
		start := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
		h.started = start
		h.now = func() time.Time { return start.Add(90 * time.Second) }
		engine := newTestEngine()
		engine.GET("/health/live", h.Live)

		w := doJSON(engine, http.MethodGet, "/health/live", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "1m30s", resp.Uptime)
		assert.Empty(t, resp.Components)
	})
}
