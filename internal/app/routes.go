package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/middleware"
	"github.com/mx-space/tldr/internal/modules/content/document"
	"github.com/mx-space/tldr/internal/modules/processing/summary"
	appconfigs "github.com/mx-space/tldr/internal/modules/system/core/configs"
	"github.com/mx-space/tldr/internal/modules/system/core/health"
	"github.com/mx-space/tldr/internal/modules/tasks/crontask"
	"github.com/mx-space/tldr/internal/modules/tasks/tldrqueue"
	"github.com/mx-space/tldr/internal/pkg/response"
)

func (a *App) buildRouter() {
	if a.cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(a.logger, "/health", "/metrics"))
	r.Use(corsMiddleware(a.cfg.AllowedOrigins, a.cfg.IsDev()))
	r.Use(middleware.OptionalAuth(a.signer))

	r.NoRoute(func(c *gin.Context) {
		response.NotFoundMsg(c, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"ok": 0, "code": http.StatusMethodNotAllowed, "message": "method not allowed"})
	})
	a.router = r

	authz := middleware.DefaultAuthorizer{}
	editMW := middleware.Require(authz, middleware.ActionEdit)
	manageMW := middleware.Require(authz, middleware.ActionManage)

	root := r.Group("")
	root.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	health.RegisterRoutes(root, a.healthOptions(), manageMW)

	// A replayed generate is refused while the first copy is running.
	var generateMW []gin.HandlerFunc
	if a.rc != nil {
		generateMW = append(generateMW, middleware.InFlightGuard(a.rc.Raw(), keyPrefix))
	}
	summary.NewHandler(a.tldr, a.limiter, authz).RegisterRoutes(root, generateMW...)

	document.NewHandler(a.queue).RegisterRoutes(root.Group("/tldr"), editMW)
	tldrqueue.NewHandler(a.queue).RegisterRoutes(root, manageMW, editMW)
	appconfigs.NewHandler(a.settings).RegisterRoutes(root, manageMW)
	crontask.NewHandler(a.cron).RegisterRoutes(root, manageMW)
}

func (a *App) healthOptions() health.Options {
	opts := health.Options{
		Database: health.PingFunc(func(ctx context.Context) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		LogDir:  a.cfg.LogDir,
		Started: a.started,
	}
	if a.rc != nil {
		opts.Redis = a.rc
	}
	return opts
}
