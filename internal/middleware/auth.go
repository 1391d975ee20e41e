package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/pkg/jwt"
	"github.com/mx-space/tldr/internal/pkg/response"
)

const ContextKeyActor = "actor"

// Actor is the authenticated caller.
type Actor struct {
	ID   string
	Role string
}

// Auth returns a middleware that requires a valid actor token.
func Auth(signer *jwt.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := signer.Parse(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyActor, &Actor{ID: claims.UserID, Role: claims.Role})
		c.Next()
	}
}

// OptionalAuth sets the actor if a valid token is present, but does not block the request.
func OptionalAuth(signer *jwt.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if claims, err := signer.Parse(token); err == nil {
				c.Set(ContextKeyActor, &Actor{ID: claims.UserID, Role: claims.Role})
			}
		}
		c.Next()
	}
}

// CurrentActor returns the authenticated actor, or nil.
func CurrentActor(c *gin.Context) *Actor {
	v, _ := c.Get(ContextKeyActor)
	a, _ := v.(*Actor)
	return a
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	if a := CurrentActor(c); a != nil {
		return a.ID
	}
	return ""
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

// ActorKey identifies the caller for per-actor limits: the user id when
// authenticated, the client ip otherwise.
func ActorKey(c *gin.Context) string {
	if id := CurrentUserID(c); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
