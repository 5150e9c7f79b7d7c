package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopcore/stockengine/internal/infrastructure/logger"
	"github.com/shopcore/stockengine/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// RequirePermission lets the request through when the token grants
// permission. Must run after JWTAuth.
func RequirePermission(permission string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, "Authentication required", c.GetString(logger.RequestIDKey)))
			return
		}
		if !claims.HasPermission(permission) {
			log.Warn("Permission denied",
				zap.String("actor_id", claims.ActorID()),
				zap.String("required", permission),
				zap.Strings("granted", claims.Permissions),
				zap.String("path", c.FullPath()),
			)
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeForbidden, "Access denied: insufficient permissions", c.GetString(logger.RequestIDKey)))
			return
		}
		c.Next()
	}
}
