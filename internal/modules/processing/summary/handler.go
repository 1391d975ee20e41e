package summary

import (
	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/middleware"
	"github.com/mx-space/tldr/internal/pkg/ratelimit"
	"github.com/mx-space/tldr/internal/pkg/response"
)

const generateAction = "generate"

type Handler struct {
	svc     *Service
	limiter ratelimit.Limiter
	authz   middleware.Authorizer
}

func NewHandler(svc *Service, limiter ratelimit.Limiter, authz middleware.Authorizer) *Handler {
	if authz == nil {
		authz = middleware.DefaultAuthorizer{}
	}
	return &Handler{svc: svc, limiter: limiter, authz: authz}
}

// RegisterRoutes mounts the summary API. generateMW runs after authorization
// and before the rate limit, so a request it rejects costs no slot.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, generateMW ...gin.HandlerFunc) {
	g := rg.Group("/tldr")
	read := middleware.Require(h.authz, middleware.ActionRead)
	edit := middleware.Require(h.authz, middleware.ActionEdit)

	g.GET("/documents/:id", read, h.get)

	gen := append([]gin.HandlerFunc{edit}, generateMW...)
	gen = append(gen, middleware.RateLimit(h.limiter, generateAction, h.svc.logger), h.generate)
	g.POST("/documents/:id/generate", gen...)
	g.POST("/documents/:id/update", edit, h.update)
	g.POST("/documents/:id/pin", edit, h.pin)
	g.POST("/documents/:id/revert", edit, h.revert)
	g.DELETE("/documents/:id", edit, h.delete)

	g.GET("/test-connection", middleware.Require(h.authz, middleware.ActionManage), h.testConnection)
	g.GET("/rate-limit", h.rateLimit)
}

// GET /tldr/documents/:id
func (h *Handler) get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// POST /tldr/documents/:id/generate
func (h *Handler) generate(c *gin.Context) {
	var opts GenerateOptions
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	res, err := h.svc.Generate(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

type updateRequest struct {
	Text      *string `json:"text"`
	AutoRegen *bool   `json:"autoRegen"`
}

// POST /tldr/documents/:id/update
func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	if req.Text != nil {
		ok, err := h.svc.Update(ctx, id, *req.Text)
		if err != nil {
			response.Error(c, err)
			return
		}
		if !ok {
			response.BadRequest(c, "Failed to update summary")
			return
		}
	}
	if req.AutoRegen != nil {
		if err := h.svc.SetAutoRegen(ctx, id, *req.AutoRegen); err != nil {
			response.Error(c, err)
			return
		}
	}
	autoRegen, err := h.svc.AutoRegen(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"success": true, "message": "Summary updated successfully", "autoRegen": autoRegen})
}

type pinRequest struct {
	Pinned *bool `json:"pinned"`
}

// POST /tldr/documents/:id/pin
func (h *Handler) pin(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Pinned == nil {
		response.BadRequest(c, "pinned is required")
		return
	}
	if err := h.svc.SetPinned(c.Request.Context(), c.Param("id"), *req.Pinned); err != nil {
		response.Error(c, err)
		return
	}
	msg := "Summary unpinned"
	if *req.Pinned {
		msg = "Summary pinned"
	}
	response.OK(c, gin.H{"success": true, "pinned": *req.Pinned, "message": msg})
}

// POST /tldr/documents/:id/revert
func (h *Handler) revert(c *gin.Context) {
	text, err := h.svc.RevertToAICopy(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"success": true, "text": text, "message": "Reverted to AI-generated copy"})
}

// DELETE /tldr/documents/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"success": true, "message": "Summary deleted successfully"})
}

// GET /tldr/test-connection
func (h *Handler) testConnection(c *gin.Context) {
	msg, err := h.svc.TestConnection(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"ok": true, "message": msg})
}

// GET /tldr/rate-limit
func (h *Handler) rateLimit(c *gin.Context) {
	d, err := h.limiter.Peek(c.Request.Context(), middleware.RateLimitKey(c, generateAction))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"limit":     d.Limit,
		"used":      d.Used,
		"remaining": d.Remaining,
		"resetIn":   d.ResetInSeconds(),
	})
}
