package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"knowledgehub/internal/transport/http/response"
)

// RequestID assigns a correlation id to every request if the caller did not
// send one, and echoes it back in the response headers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(response.RequestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
