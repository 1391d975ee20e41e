package crontask

import (
	"errors"

	"github.com/gin-gonic/gin"
	pkgcron "github.com/mx-space/tldr/internal/pkg/cron"
	"github.com/mx-space/tldr/internal/pkg/response"
)

// Handler exposes the background jobs for inspection and manual runs.
type Handler struct {
	sched *pkgcron.Scheduler
}

func NewHandler(sched *pkgcron.Scheduler) *Handler {
	return &Handler{sched: sched}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/tldr/cron", authMW)
	g.GET("", h.list)
	g.GET("/:name", h.get)
	g.POST("/:name/run", h.run)
}

// GET /tldr/cron: list all jobs
func (h *Handler) list(c *gin.Context) {
	response.OK(c, h.sched.List())
}

// GET /tldr/cron/:name: get single job status
func (h *Handler) get(c *gin.Context) {
	item, ok := h.sched.Get(c.Param("name"))
	if !ok {
		response.NotFoundMsg(c, "cron job not found")
		return
	}
	response.OK(c, item)
}

// POST /tldr/cron/:name/run: run a job now and report its state, 409 if it is mid-run
func (h *Handler) run(c *gin.Context) {
	name := c.Param("name")
	switch err := h.sched.Run(c.Request.Context(), name); {
	case errors.Is(err, pkgcron.ErrJobNotFound):
		response.NotFoundMsg(c, "cron job not found")
		return
	case errors.Is(err, pkgcron.ErrJobRunning):
		response.Conflict(c, "cron job is already running")
		return
	}
	item, _ := h.sched.Get(name)
	response.OK(c, item)
}
