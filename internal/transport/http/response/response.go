package response

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"knowledgehub/internal/ai"
	"knowledgehub/internal/app"
)

// RequestIDKey is the gin context key under which the correlation id lives.
const RequestIDKey = "request_id"

// Error writes the error contract: `{"error": "..."}` with the given status.
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message})
}

// MapError converts the service error taxonomy to HTTP statuses:
// validation 400, permission 403, not found 404, invalid transition 409,
// upstream timeout 504, other upstream failures 502, everything else 500.
// Every error is logged with the request's correlation id so permission
// failures are never silently swallowed.
func MapError(c *gin.Context, err error) {
	requestID := c.GetString(RequestIDKey)
	log.Printf("[%s] %s %s failed: %v", requestID, c.Request.Method, c.Request.URL.Path, err)

	var transition *app.InvalidTransitionError
	var upstream *ai.UpstreamError
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrPermissionDenied):
		Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.As(err, &transition):
		Error(c, http.StatusConflict, transition.Error())
	case errors.As(err, &upstream):
		if upstream.Timeout {
			Error(c, http.StatusGatewayTimeout, upstream.Error())
		} else {
			Error(c, http.StatusBadGateway, upstream.Error())
		}
	default:
		Error(c, http.StatusInternalServerError, "internal error")
	}
}
