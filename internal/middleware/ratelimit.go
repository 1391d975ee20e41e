package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/pkg/ratelimit"
	"github.com/mx-space/tldr/internal/pkg/response"
	"go.uber.org/zap"
)

const rateLimitMessage = "Rate limit exceeded. Please wait before generating another summary."

// RateLimitKey is the limiter key for one actor and action.
func RateLimitKey(c *gin.Context, action string) string {
	return ActorKey(c) + ":" + action
}

// RateLimit rejects the request once the actor has used up the window for action.
// Limiter failures let the request through.
func RateLimit(l ratelimit.Limiter, action string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		d, err := l.Allow(c.Request.Context(), RateLimitKey(c, action))
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("action", action), zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			response.TooManyRequests(c, rateLimitMessage, d.ResetInSeconds())
			return
		}
		c.Next()
	}
}
