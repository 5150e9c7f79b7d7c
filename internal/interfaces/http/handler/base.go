package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/infrastructure/logger"
	"github.com/shopcore/stockengine/internal/interfaces/http/dto"
	"github.com/shopcore/stockengine/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// ErrorRecorder counts domain errors per operation
type ErrorRecorder interface {
	RecordDomainError(ctx context.Context, operation string, err error)
}

// BaseHandler provides common handler utilities
type BaseHandler struct {
	errors ErrorRecorder
}

// NewBaseHandler creates a BaseHandler. recorder may be nil.
func NewBaseHandler(recorder ErrorRecorder) BaseHandler {
	return BaseHandler{errors: recorder}
}

func getRequestID(c *gin.Context) string {
	return c.GetString(logger.RequestIDKey)
}

func actorOf(c *gin.Context) string {
	return middleware.GetActorID(c)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Paged sends a page of results with pagination meta
func Paged[T any](c *gin.Context, page shared.Paginated[T]) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(page.Items, page.Total, page.Page, page.PageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InvalidBody answers a failed ShouldBind*
func (h *BaseHandler) InvalidBody(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError maps err onto the response. Domain errors keep their code and
// the status comes from the code table; anything else is a 500 whose detail
// stays in the log.
func (h *BaseHandler) HandleError(c *gin.Context, operation string, err error) {
	if err == nil {
		return
	}
	ctx := c.Request.Context()

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		if h.errors != nil {
			h.errors.RecordDomainError(ctx, operation, err)
		}
		status := dto.GetHTTPStatus(domainErr.Code)
		if status >= http.StatusInternalServerError {
			logger.GetGinLogger(c).Error("Domain error with server status",
				zap.String("operation", operation), zap.Error(err))
		}
		h.Error(c, status, domainErr.Code, err.Error())
		return
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		logger.GetGinLogger(c).Warn("Request aborted",
			zap.String("operation", operation), zap.Error(err))
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Request timed out")
		return
	}

	logger.GetGinLogger(c).Error("Request failed",
		zap.String("operation", operation), zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// uuidParam parses a path parameter, answering 400 when it is malformed
func (h *BaseHandler) uuidParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+label+" ID format")
		return uuid.Nil, false
	}
	return id, true
}
