package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopcore/stockengine/internal/infrastructure/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request named after the route pattern.
// A nil provider uses the global one.
func Tracing(serviceName string, tp trace.TracerProvider) gin.HandlerFunc {
	var opts []otelgin.Option
	if tp != nil {
		opts = append(opts, otelgin.WithTracerProvider(tp))
	}
	return otelgin.Middleware(serviceName, opts...)
}

// SpanAttributes enriches the request span once the handler has run. It must
// be registered after Tracing so the span is still open.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		if id := c.GetString(logger.RequestIDKey); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		if actor := GetActorID(c); actor != "" {
			span.SetAttributes(attribute.String("actor_id", actor))
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
