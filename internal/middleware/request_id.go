package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-chat/internal/logger"
)

const RequestIDHeader = "X-Request-Id"

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Set(RequestIDKey, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
