package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/openboard/openboard/internal/audit"
)

// Audit records the outcome of a security-relevant route once the handler
// chain has completed, so the entry carries the final status code. The
// resource kind says which field of the entry the :id path parameter fills.
func Audit(trail *audit.Trail, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		entry := &audit.Entry{
			Action:     action,
			UserID:     c.GetString("user_id"),
			IPAddress:  c.ClientIP(),
			StatusCode: c.Writer.Status(),
		}
		switch resource {
		case "board":
			entry.BoardID = c.Param("id")
		case "card":
			entry.CardID = c.Param("id")
		}

		trail.Record(c.Request.Context(), entry)
	}
}
