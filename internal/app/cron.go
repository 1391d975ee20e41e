package app

import (
	"context"

	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/modules/tasks/tldrqueue"
	pkgcron "github.com/mx-space/tldr/internal/pkg/cron"
)

const (
	jobProcessQueue = "process_tldr_queue"
	jobRunTimers    = "run_tldr_timers"
)

// registerCronJobs registers the queue batch tick and the deferred-timer poll.
// A disabled scheduler keeps the timer poll so retries and fast paths still run.
func registerCronJobs(sched *pkgcron.Scheduler, queue *tldrqueue.Scheduler, cfg config.SchedulerConfig) {
	if !cfg.Disabled {
		sched.Register(pkgcron.Job{
			Name:        jobProcessQueue,
			Description: "Regenerate queued summaries in one bounded batch",
			Interval:    cfg.Interval,
			Fn: func(ctx context.Context) error {
				_, err := queue.Tick(ctx)
				return err
			},
		})
	}

	sched.Register(pkgcron.Job{
		Name:        jobRunTimers,
		Description: "Run due retry and fast-path timers",
		Interval:    cfg.PollInterval,
		Fn: func(ctx context.Context) error {
			_, err := queue.RunDue(ctx)
			return err
		},
	})
}
