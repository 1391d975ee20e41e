package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/database"
	"github.com/mx-space/tldr/internal/modules/content/document"
	"github.com/mx-space/tldr/internal/modules/processing/ai"
	"github.com/mx-space/tldr/internal/modules/processing/content"
	"github.com/mx-space/tldr/internal/modules/processing/retrieval"
	"github.com/mx-space/tldr/internal/modules/processing/summary"
	appconfigs "github.com/mx-space/tldr/internal/modules/system/core/configs"
	"github.com/mx-space/tldr/internal/modules/tasks/tldrqueue"
	pkgcron "github.com/mx-space/tldr/internal/pkg/cron"
	jwtpkg "github.com/mx-space/tldr/internal/pkg/jwt"
	"github.com/mx-space/tldr/internal/pkg/metrics"
	"github.com/mx-space/tldr/internal/pkg/ratelimit"
	pkgredis "github.com/mx-space/tldr/internal/pkg/redis"
	"github.com/mx-space/tldr/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	rc       *pkgredis.Client
	logger   *zap.Logger
	settings *appconfigs.Service
	metrics  *metrics.Metrics
	signer   *jwtpkg.Signer
	limiter  ratelimit.Limiter
	docs     *document.GormSource
	tldr     *summary.Service
	queue    *tldrqueue.Scheduler
	cron     *pkgcron.Scheduler
	closers  []io.Closer
	cancel   context.CancelFunc
	started  time.Time
}

// New initializes the application: config → DB → Redis → stores → services → routes.
// Background jobs are registered but not running until Start.
func New(ctx context.Context, logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	a := &App{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		metrics: metrics.New(),
		signer:  jwtpkg.NewSigner(cfg.JWTSecret),
		started: time.Now(),
	}
	if cfg.JWTSecret == "" {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}

	if cfg.NeedsRedis() {
		rc, err := pkgredis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.rc = rc
		a.closers = append(a.closers, rc)
	}

	if err := a.buildServices(); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.buildRouter()
	return a, nil
}

func (a *App) buildServices() error {
	cfg, logger := a.cfg, a.logger

	a.settings = appconfigs.NewService(a.db)
	store, err := a.newSummaryStore()
	if err != nil {
		return fmt.Errorf("summary store: %w", err)
	}

	normalizer := content.NewNormalizer()
	a.docs = document.NewGormSource(a.db)
	a.tldr = summary.NewService(summary.Deps{
		Store:      store,
		Documents:  a.docs,
		Sourcer:    content.NewSourcer(normalizer, retrieval.New(cfg.Timeouts.Retrieve, logger), a.settings, 0, logger),
		Provider:   ai.NewClient(a.settings, ai.Options{Timeout: cfg.Timeouts.Summarize, TestTimeout: cfg.Timeouts.TestConnection}, logger),
		Normalizer: normalizer,
		Settings:   a.settings,
		Metrics:    a.metrics,
	}, logger)

	queue := taskqueue.New(a.newQueueStore(), taskqueue.Options{
		MaxRetries:  cfg.Scheduler.MaxRetries,
		BackoffBase: cfg.Scheduler.BackoffBase,
	}, logger)
	a.queue = tldrqueue.New(queue, a.tldr, a.newActivityLog(), a.metrics, tldrqueue.Options{
		BatchSize:     cfg.Scheduler.BatchSize,
		FastPathDelay: cfg.Scheduler.FastPathDelay,
	}, logger)
	a.limiter = a.newLimiter()

	a.cron = pkgcron.New(logger.Named("CronService"))
	registerCronJobs(a.cron, a.queue, cfg.Scheduler)
	a.queue.SetNextTick(func() (time.Time, bool) { return a.cron.NextRun(jobProcessQueue) })
	return nil
}

// Start launches the background jobs. They stop when ctx is cancelled or on Shutdown.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.cron.Start(ctx)
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Queue exposes the scheduler for CLI commands.
func (a *App) Queue() *tldrqueue.Scheduler { return a.queue }

// Summaries exposes the summary service for CLI commands.
func (a *App) Summaries() *summary.Service { return a.tldr }

// Shutdown stops background jobs, waits for a running batch, and releases connections.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
		a.cron.Wait()
	}
	if err := a.Close(); err != nil {
		a.logger.Warn("shutdown", zap.Error(err))
	}
}

// Close releases stores and connections without touching background jobs.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	if a.db != nil {
		errs = append(errs, database.Close(a.db))
		a.db = nil
	}
	return errors.Join(errs...)
}
