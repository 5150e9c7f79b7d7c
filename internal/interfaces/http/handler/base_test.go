package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopcore/stockengine/internal/interfaces/http/dto"
	"github.com/shopcore/stockengine/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		recorded   bool
	}{
		{"wrapped domain error", fmt.Errorf("reserve 3 of SKU-1: %w", stock.ErrInsufficientStock), http.StatusUnprocessableEntity, stock.CodeInsufficientStock, true},
		{"not found", stock.ErrItemNotFound, http.StatusNotFound, stock.CodeItemNotFound, true},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, dto.ErrCodeUnavailable, false},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, false},
		{"unexpected", errors.New("pq: relation does not exist"), http.StatusInternalServerError, dto.ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := new(MockErrorRecorder)
			if tt.recorded {
				recorder.On("RecordDomainError", mock.Anything, "lookup", tt.err).Return().Once()
			}
			h := NewBaseHandler(recorder)
			engine := newTestEngine()
			engine.GET("/lookup", func(c *gin.Context) { h.HandleError(c, "lookup", tt.err) })

			w := doJSON(engine, http.MethodGet, "/lookup", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			info := decodeError(t, w)
			assert.Equal(t, tt.wantCode, info.Code)
			assert.NotEmpty(t, info.RequestID)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, info.Message, "pq:")
			}
			recorder.AssertExpectations(t)
			if !tt.recorded {
				recorder.AssertNotCalled(t, "RecordDomainError", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestBaseHandler_NilRecorder(t *testing.T) {
	h := NewBaseHandler(nil)
	engine := newTestEngine()
	engine.GET("/lookup", func(c *gin.Context) { h.HandleError(c, "lookup", stock.ErrItemNotFound) })

	w := doJSON(engine, http.MethodGet, "/lookup", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActorOf(t *testing.T) {
	engine := newTestEngine()
	engine.GET("/whoami", func(c *gin.Context) {
		c.Set(middleware.JWTActorIDKey, "ops.lead")
		c.String(http.StatusOK, actorOf(c))
	})
	w := doJSON(engine, http.MethodGet, "/whoami", nil)
	assert.Equal(t, "ops.lead", w.Body.String())
}
