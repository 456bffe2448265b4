package middleware

import (
	"net/http"
	"time"

	"github.com/aman-churiwal/quotagate/internal/config"
	"github.com/aman-churiwal/quotagate/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// now is swapped in tests to pin requests to a window
var now = time.Now

// Identify picks the counter identity for a request. Header and path strategies
// fall back to the client address when they do not match.
func Identify(c *gin.Context, scope string, cfg config.RateLimitConfig) ratelimit.Identity {
	id := ratelimit.Identity{Scope: scope}

	switch cfg.LimitBy {
	case config.LimitByHeader:
		if value := c.GetHeader(cfg.HeaderName); value != "" {
			id.Value = value
			return id
		}
	case config.LimitByPath:
		// the query string is part of the match
		if c.Request.URL.RequestURI() == cfg.Path {
			id.Value = cfg.Path
			return id
		}
	}

	id.Value = c.ClientIP()
	return id
}

// Enforces the service's limits before the request reaches the proxy
func RateLimit(scope string, limiter *ratelimit.Limiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := Identify(c, scope, cfg)
		c.Set("ratelimit_identity", id.Value)

		decision, err := limiter.Admit(c.Request.Context(), id, now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Rate limit check failed",
			})
			return
		}

		for name, value := range decision.Headers {
			c.Header(name, value)
		}

		if !decision.Allow {
			c.Data(cfg.ErrorCode, "text/plain; charset=utf-8", []byte(cfg.ErrorMessage))
			c.Abort()
			return
		}

		c.Next()
	}
}
