package app

import (
	"context"
	"net/http"
	"time"

	"library_backend/logging"

	"github.com/gin-gonic/gin"
)

// Fail aborts with the {success:false,message} envelope.
func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, H{"success": false, "message": msg})
}

// RequestLogger writes one line per request.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		}
		if uid, ok := CurrentUserID(c); ok {
			args = append(args, "user_id", uid)
		}
		if status >= http.StatusInternalServerError {
			log.Warn(c.Request.Context(), "request", args...)
			return
		}
		log.Info(c.Request.Context(), "request", args...)
	}
}

// Deadline bounds every request; store calls inherit it through the request context.
func Deadline(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
