package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopcore/stockengine/internal/interfaces/http/dto"
)

// ErrCodeRequestTooLarge is returned for bodies over http.max_body_size
const ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"

// BodyLimit rejects declared oversize bodies up front and caps streamed ones
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size"))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
