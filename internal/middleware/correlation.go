package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationIDKey is the gin context key carrying the request's
// correlation ID.
const CorrelationIDKey = "correlation_id"

const correlationHeader = "X-Correlation-ID"

// CorrelationID propagates the engine's correlation ID, minting one when
// the caller sent none, so a scan's open, pull, and close requests can be
// tied together in the logs.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(correlationHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(CorrelationIDKey, correlationID)
		c.Header(correlationHeader, correlationID)

		ctx := context.WithValue(c.Request.Context(), CorrelationIDKey, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
