// Package respond maps application errors onto HTTP responses. All handler
// packages funnel their failures through Error so the status-code contract
// lives in exactly one place.
package respond

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openboard/openboard/internal/apperr"
)

// Error writes the JSON error response for err, deriving the status from the
// apperr taxonomy. Rate-limited rejections carry a Retry-After header.
// Internal failures (500) log the underlying error and return a generic
// message so dependency details never leak to clients.
func Error(c *gin.Context, err error) {
	status := apperr.Status(err)

	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.AbortWithStatusJSON(status, gin.H{"error": "Internal server error"})
		return
	}

	body := gin.H{"error": err.Error()}
	if retry := apperr.RetryAfter(err); retry > 0 {
		secs := int(retry.Seconds() + 0.5)
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		body["retry_after"] = secs
	}
	c.AbortWithStatusJSON(status, body)
}
