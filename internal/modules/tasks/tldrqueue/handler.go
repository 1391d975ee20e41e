package tldrqueue

import (
	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/pkg/response"
)

type Handler struct{ sched *Scheduler }

func NewHandler(sched *Scheduler) *Handler { return &Handler{sched: sched} }

// RegisterRoutes mounts queue administration behind manageMW and the
// "generate soon" trigger behind editMW.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, manageMW, editMW gin.HandlerFunc) {
	rg.POST("/tldr/documents/:id/enqueue", editMW, h.enqueue)

	g := rg.Group("/tldr/queue", manageMW)
	g.GET("", h.list)
	g.GET("/status", h.status)
	g.GET("/activity", h.activity)
	g.POST("/run", h.run)
	g.DELETE("", h.clear)
	g.DELETE("/:id", h.remove)
}

// POST /tldr/documents/:id/enqueue
func (h *Handler) enqueue(c *gin.Context) {
	res, err := h.sched.EnqueueHighPriority(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// GET /tldr/queue
func (h *Handler) list(c *gin.Context) {
	entries, err := h.sched.Entries(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}

// GET /tldr/queue/status
func (h *Handler) status(c *gin.Context) {
	st, err := h.sched.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, st)
}

// GET /tldr/queue/activity
func (h *Handler) activity(c *gin.Context) {
	records, err := h.sched.RecentActivity(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// POST /tldr/queue/run processes one batch now.
func (h *Handler) run(c *gin.Context) {
	rep, err := h.sched.Tick(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rep)
}

// DELETE /tldr/queue
func (h *Handler) clear(c *gin.Context) {
	if err := h.sched.Clear(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DELETE /tldr/queue/:id
func (h *Handler) remove(c *gin.Context) {
	removed, err := h.sched.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !removed {
		response.NotFoundMsg(c, "document is not queued")
		return
	}
	response.NoContent(c)
}
