package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sistema-escolar/escuela-backend/internal/config"
	"github.com/sistema-escolar/escuela-backend/internal/ratelimit"
	"github.com/sistema-escolar/escuela-backend/internal/response"
)

// RateLimit allows limit requests per window per client IP within scope.
// Counter failures let the request through.
func RateLimit(counter ratelimit.Counter, scope string, limit int, window time.Duration, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "ratelimit").Str("scope", scope).Logger()

	return func(c *gin.Context) {
		key := config.CacheKey.RateLimitKey(scope, c.ClientIP())

		n, retryAfter, err := counter.Hit(c.Request.Context(), key, window)
		if err != nil {
			log.Warn().Err(err).Msg("Rate counter unavailable")
			c.Next()
			return
		}

		remaining := limit - n
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if n > limit {
			response.TooManyRequests(c, response.ErrRateLimitExceeded, retryAfter)
			return
		}

		c.Next()
	}
}
