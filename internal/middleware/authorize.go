package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/pkg/response"
)

// Action is the permission a route needs on its target document.
type Action string

const (
	ActionRead   Action = "read"
	ActionEdit   Action = "edit"
	ActionManage Action = "manage"
)

const RoleAdmin = "admin"

// Authorizer decides whether actor may perform action on a document. The host
// supplies its own; documentID is empty for routes without one.
type Authorizer interface {
	Authorize(ctx context.Context, actor *Actor, action Action, documentID string) bool
}

// DefaultAuthorizer lets anyone read, any authenticated actor edit, and only
// admins manage settings.
type DefaultAuthorizer struct{}

func (DefaultAuthorizer) Authorize(_ context.Context, actor *Actor, action Action, _ string) bool {
	switch action {
	case ActionRead:
		return true
	case ActionEdit:
		return actor != nil
	case ActionManage:
		return actor != nil && actor.Role == RoleAdmin
	default:
		return false
	}
}

// Require aborts the request unless the authorizer allows action on the
// document named by the :id path parameter.
func Require(a Authorizer, action Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := CurrentActor(c)
		if a.Authorize(c.Request.Context(), actor, action, c.Param("id")) {
			c.Next()
			return
		}
		if actor == nil {
			response.Unauthorized(c)
			return
		}
		response.Forbidden(c)
	}
}
