package document

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/pkg/response"
)

// ChangeListener reacts to a host notification that a document was saved.
type ChangeListener interface {
	OnContentChanged(ctx context.Context, documentID string) (bool, error)
}

type Handler struct {
	listener ChangeListener
}

func NewHandler(listener ChangeListener) *Handler {
	return &Handler{listener: listener}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	g := rg.Group("/documents", mw...)
	g.POST("/:id/changed", h.changed)
}

// POST /documents/:id/changed
func (h *Handler) changed(c *gin.Context) {
	enqueued, err := h.listener.OnContentChanged(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"enqueued": enqueued})
}
