package configs

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the settings API behind manageMW.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, manageMW gin.HandlerFunc) {
	g := rg.Group("/tldr/settings", manageMW)
	g.GET("", h.get)
	g.PATCH("", h.patch)
}

// GET /tldr/settings
func (h *Handler) get(c *gin.Context) {
	cfg, err := h.svc.Get()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, masked(*cfg))
}

// PATCH /tldr/settings
func (h *Handler) patch(c *gin.Context) {
	var partial map[string]json.RawMessage
	if err := c.ShouldBindJSON(&partial); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	updated, err := h.svc.Patch(partial)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, masked(*updated))
}
