package app

import (
	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/modules/processing/summary"
	"github.com/mx-space/tldr/internal/modules/tasks/tldrqueue"
	"github.com/mx-space/tldr/internal/pkg/ratelimit"
	"github.com/mx-space/tldr/internal/pkg/taskqueue"
)

// Redis key layout: {keyPrefix}queue:*, {keyPrefix}ratelimit:*,
// {keyPrefix}activity, {keyPrefix}inflight:*.
const keyPrefix = "tldr:"

func (a *App) newSummaryStore() (summary.Store, error) {
	switch a.cfg.SummaryStore {
	case config.StoreBadger:
		s, err := summary.OpenBadgerStore(a.cfg.BadgerDir)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		return s, nil
	case config.StoreMemory:
		a.logger.Warn("summary_store is memory, summaries are lost on restart")
		return summary.NewMemoryStore(), nil
	default:
		return summary.NewGormStore(a.db), nil
	}
}

func (a *App) newQueueStore() taskqueue.Store {
	if a.rc != nil {
		return taskqueue.NewRedisStore(a.rc, keyPrefix)
	}
	return taskqueue.NewMemoryStore()
}

func (a *App) newActivityLog() tldrqueue.ActivityLog {
	if a.rc != nil {
		return tldrqueue.NewRedisActivity(a.rc, keyPrefix+"activity", a.cfg.Activity.Cap, a.cfg.Activity.Retention, nil)
	}
	return tldrqueue.NewMemoryActivity(a.cfg.Activity.Cap, a.cfg.Activity.Retention, nil)
}

func (a *App) newLimiter() ratelimit.Limiter {
	if a.rc != nil {
		return ratelimit.NewRedis(a.rc, keyPrefix+"ratelimit:", a.cfg.RateLimit.Requests, a.cfg.RateLimit.Window, nil)
	}
	return ratelimit.NewMemory(a.cfg.RateLimit.Requests, a.cfg.RateLimit.Window, nil)
}
