package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopcore/stockengine/internal/infrastructure/config"
	"github.com/shopcore/stockengine/internal/infrastructure/logger"
	"github.com/shopcore/stockengine/internal/interfaces/http/handler"
	"github.com/shopcore/stockengine/internal/interfaces/http/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// OpenAPIPath serves the raw document the swagger UI loads
const OpenAPIPath = "/openapi.yaml"

// hstsMaxAge is one year
const hstsMaxAge = 31536000

// EngineOptions carries what the global middleware chain needs. A nil
// TracerProvider falls back to the global one; a nil Meter disables HTTP
// metrics.
type EngineOptions struct {
	Config         *config.Config
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	Meter          metric.Meter
}

// NewEngine builds the gin engine with the global middleware chain.
// RequestID must stay first; SpanAttributes must run inside the otelgin span.
func NewEngine(opts EngineOptions) *gin.Engine {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()
	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, opts.TracerProvider))
		engine.Use(middleware.SpanAttributes())
	}
	if opts.Meter != nil {
		engine.Use(middleware.HTTPMetrics(opts.Meter, log))
	}
	if cfg.Profiler.Enabled {
		engine.Use(middleware.Profiling(middleware.DefaultProfilingConfig()))
	}

	engine.Use(middleware.Secure(middleware.SecurityConfig{
		HSTSEnabled: cfg.App.Env == "production",
		HSTSMaxAge:  hstsMaxAge,
	}))
	engine.Use(middleware.CORS(cfg.HTTP))
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	engine.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	return engine
}

// RegisterSystemRoutes mounts the health probes and, when enabled, the
// OpenAPI document with its swagger UI.
func RegisterSystemRoutes(engine *gin.Engine, health *handler.HealthHandler, swagger config.SwaggerConfig, openAPI []byte) {
	engine.GET("/health", health.Health)
	engine.GET("/health/live", health.Live)

	docs := engine.Group("", middleware.SwaggerProtection(swagger))
	docs.GET(OpenAPIPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml; charset=utf-8", openAPI)
	})
	docs.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(OpenAPIPath)))
}
