package taskqueue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 300 * time.Second
)

// Options configures a Queue. Zero values take the defaults.
type Options struct {
	MaxRetries  int
	BackoffBase time.Duration
	Now         func() time.Time
}

// Queue is the priority-ordered, deduplicating work queue of summary jobs.
type Queue struct {
	store       Store
	maxRetries  int
	backoffBase time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

func New(store Store, opts Options, logger *zap.Logger) *Queue {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		store:       store,
		maxRetries:  opts.MaxRetries,
		backoffBase: opts.BackoffBase,
		now:         opts.Now,
		logger:      logger.Named("TLDRQueue"),
	}
}

// Now returns the queue clock.
func (q *Queue) Now() time.Time { return q.now() }

// Enqueue adds a job for documentID. It returns false, leaving the queue
// untouched, when the document is already queued.
func (q *Queue) Enqueue(ctx context.Context, documentID string, opts EnqueueOptions) (bool, error) {
	return q.store.Insert(ctx, Entry{
		DocumentID: documentID,
		Priority:   ParsePriority(string(opts.Priority)),
		MaxRetries: q.maxRetries,
		QueuedAt:   q.now(),
		Length:     opts.Length,
		Tone:       opts.Tone,
	})
}

// DequeueBatch removes up to maxCount entries, highest priority first.
func (q *Queue) DequeueBatch(ctx context.Context, maxCount int) ([]Entry, error) {
	return q.store.PopFront(ctx, maxCount)
}

// Take removes and returns the queued entry for documentID, or nil.
func (q *Queue) Take(ctx context.Context, documentID string) (*Entry, error) {
	return q.store.Take(ctx, documentID)
}

// Remove drops the entry and any pending timer for documentID.
func (q *Queue) Remove(ctx context.Context, documentID string) (bool, error) {
	return q.store.Remove(ctx, documentID)
}

// Clear drops every entry and timer.
func (q *Queue) Clear(ctx context.Context) error {
	return q.store.Clear(ctx)
}

// Entries lists the queued entries in service order.
func (q *Queue) Entries(ctx context.Context) ([]Entry, error) {
	return q.store.List(ctx)
}

// Status summarizes the queue. NextScheduledRun is the earliest pending timer.
func (q *Queue) Status(ctx context.Context) (Status, error) {
	entries, err := q.store.List(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		Total:      len(entries),
		ByPriority: make(map[Priority]int, len(Priorities)),
	}
	for _, p := range Priorities {
		st.ByPriority[p] = 0
	}
	for _, e := range entries {
		st.ByPriority[e.Priority]++
		if st.OldestQueuedAt == nil || e.QueuedAt.Before(*st.OldestQueuedAt) {
			at := e.QueuedAt
			st.OldestQueuedAt = &at
		}
	}
	st.Deferred, st.NextScheduledRun, err = q.store.TimerStats(ctx)
	if err != nil {
		return Status{}, err
	}
	return st, nil
}

// ScheduleAt stores a durable timer, replacing any for the same document.
func (q *Queue) ScheduleAt(ctx context.Context, t Timer) error {
	return q.store.Schedule(ctx, t)
}

// ScheduleFastPath arranges for the queued entry of documentID to be processed after delay.
func (q *Queue) ScheduleFastPath(ctx context.Context, documentID string, delay time.Duration) (time.Time, error) {
	due := q.now().Add(delay)
	return due, q.store.Schedule(ctx, Timer{
		DocumentID: documentID,
		Kind:       TimerFastPath,
		DueAt:      due,
	})
}

// PopDue claims the timers that are due now.
func (q *Queue) PopDue(ctx context.Context) ([]Timer, error) {
	return q.store.PopDue(ctx, q.now())
}

// Backoff returns the delay before retry number retryCount (1-based): base, 2*base, 4*base...
func (q *Queue) Backoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return q.backoffBase << (retryCount - 1)
}

// RequeueWithBackoff records a failed attempt. While retries remain the entry is
// deferred with exponential backoff; otherwise it is dropped and a terminal
// failure is logged.
func (q *Queue) RequeueWithBackoff(ctx context.Context, e Entry, cause error) (RequeueResult, error) {
	e.RetryCount++
	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = q.maxRetries
		e.MaxRetries = maxRetries
	}
	if e.RetryCount >= maxRetries {
		q.Drop(e, cause)
		return RequeueResult{RetryCount: e.RetryCount}, nil
	}

	due := q.now().Add(q.Backoff(e.RetryCount))
	if err := q.store.Schedule(ctx, Timer{
		DocumentID: e.DocumentID,
		Kind:       TimerRetry,
		DueAt:      due,
		Entry:      &e,
	}); err != nil {
		return RequeueResult{}, err
	}
	q.logger.Info("summary job deferred",
		zap.String("document_id", e.DocumentID),
		zap.Int("retry_count", e.RetryCount),
		zap.Time("retry_at", due),
		zap.Error(cause),
	)
	return RequeueResult{Rescheduled: true, RetryCount: e.RetryCount, RetryAt: due}, nil
}

// Drop emits the terminal failure record for an entry that will not be retried.
func (q *Queue) Drop(e Entry, cause error) {
	q.logger.Warn("summary job dropped",
		zap.String("document_id", e.DocumentID),
		zap.Int("retry_count", e.RetryCount),
		zap.Int("max_retries", e.MaxRetries),
		zap.Error(cause),
	)
}
