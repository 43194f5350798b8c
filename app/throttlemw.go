package app

import (
	"net/http"
	"time"

	"library_backend/logging"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// LoginThrottle counts login attempts per client IP in a fixed window.
// If Redis is unreachable the request goes through.
func LoginThrottle(rdb redis.UniversalClient, maxAttempts int, window time.Duration, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxAttempts <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "login:attempts:" + c.ClientIP()

		n, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Warn(ctx, "login throttle unavailable", "err", err)
			c.Next()
			return
		}
		if n == 1 {
			_ = rdb.Expire(ctx, key, window).Err()
		}
		if n > int64(maxAttempts) {
			Fail(c, http.StatusTooManyRequests, "Too many login attempts. Please try again later")
			return
		}
		c.Next()
	}
}
