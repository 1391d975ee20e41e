package tldrqueue

import (
	"context"
	"sync"
	"time"

	"github.com/mx-space/tldr/internal/modules/processing/content"
	"github.com/mx-space/tldr/internal/modules/processing/summary"
	"github.com/mx-space/tldr/internal/pkg/apperr"
	"github.com/mx-space/tldr/internal/pkg/metrics"
	"github.com/mx-space/tldr/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize     = 5
	DefaultFastPathDelay = 30 * time.Second
)

// Skip reasons, in the order they are checked.
const (
	skipMissing     = "missing"
	skipUnpublished = "unpublished"
	skipPinned      = "pinned"
	skipUnchanged   = "unchanged"
	skipAutoRegen   = "auto_regen_disabled"
)

// Summaries is the part of the summary service the scheduler drives.
type Summaries interface {
	Generate(ctx context.Context, documentID string, opts summary.GenerateOptions) (*summary.Result, error)
	Record(ctx context.Context, documentID string) (*summary.Summary, error)
	AutoRegen(ctx context.Context, documentID string) (bool, error)
	Style(ctx context.Context, documentID string) (length, tone string, err error)
	Document(ctx context.Context, documentID string) (*content.Document, error)
	Fingerprint(doc content.Document) string
}

type Options struct {
	BatchSize     int
	FastPathDelay time.Duration
	// NextTick reports when the periodic job runs next, if known.
	NextTick func() (time.Time, bool)
}

// Report counts what one run did with the entries it handled.
type Report struct {
	Processed int `json:"processed"`
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Deferred  int `json:"deferred"`
	Dropped   int `json:"dropped"`
}

// EnqueueResult answers a "generate now" request.
type EnqueueResult struct {
	Enqueued bool      `json:"enqueued"`
	RunAt    time.Time `json:"runAt"`
}

// Scheduler drains the queue in bounded batches and runs due timers. Runs are
// serialized, so at most one generation per document is in flight from here.
type Scheduler struct {
	queue         *taskqueue.Queue
	summaries     Summaries
	activity      ActivityLog
	metrics       *metrics.Metrics
	batchSize     int
	fastPathDelay time.Duration
	run           sync.Mutex
	mu            sync.Mutex
	nextTick      func() (time.Time, bool)
	logger        *zap.Logger
}

func New(queue *taskqueue.Queue, summaries Summaries, activity ActivityLog, m *metrics.Metrics, opts Options, logger *zap.Logger) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FastPathDelay <= 0 {
		opts.FastPathDelay = DefaultFastPathDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		queue:         queue,
		summaries:     summaries,
		activity:      activity,
		metrics:       m,
		batchSize:     opts.BatchSize,
		fastPathDelay: opts.FastPathDelay,
		nextTick:      opts.NextTick,
		logger:        logger.Named("TLDRScheduler"),
	}
}

// SetNextTick wires the periodic job clock after construction.
func (s *Scheduler) SetNextTick(fn func() (time.Time, bool)) {
	s.mu.Lock()
	s.nextTick = fn
	s.mu.Unlock()
}

// Tick processes up to one batch from the front of the queue.
func (s *Scheduler) Tick(ctx context.Context) (Report, error) {
	s.run.Lock()
	defer s.run.Unlock()

	var rep Report
	entries, err := s.queue.DequeueBatch(ctx, s.batchSize)
	if err != nil {
		return rep, err
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		s.process(ctx, e, &rep)
	}
	s.updateDepth(ctx)
	if rep.Processed > 0 {
		s.logger.Info("queue batch processed",
			zap.Int("processed", rep.Processed),
			zap.Int("generated", rep.Generated),
			zap.Int("skipped", rep.Skipped),
			zap.Int("deferred", rep.Deferred),
			zap.Int("dropped", rep.Dropped),
		)
	}
	return rep, nil
}

// RunDue fires the timers that are due: retries run their carried entry,
// fast-path triggers take the live entry and do nothing if it is gone.
func (s *Scheduler) RunDue(ctx context.Context) (Report, error) {
	s.run.Lock()
	defer s.run.Unlock()

	var rep Report
	timers, err := s.queue.PopDue(ctx)
	if err != nil {
		return rep, err
	}
	for _, t := range timers {
		if ctx.Err() != nil {
			break
		}
		switch t.Kind {
		case taskqueue.TimerRetry:
			if t.Entry == nil {
				continue
			}
			// A live entry for the same document is covered by this run.
			if _, err := s.queue.Take(ctx, t.DocumentID); err != nil {
				s.logger.Warn("take queued duplicate", zap.String("document_id", t.DocumentID), zap.Error(err))
			}
			s.process(ctx, *t.Entry, &rep)
		case taskqueue.TimerFastPath:
			e, err := s.queue.Take(ctx, t.DocumentID)
			if err != nil {
				s.logger.Warn("take fast-path entry", zap.String("document_id", t.DocumentID), zap.Error(err))
				continue
			}
			if e == nil {
				continue
			}
			s.process(ctx, *e, &rep)
		}
	}
	if len(timers) > 0 {
		s.updateDepth(ctx)
	}
	return rep, nil
}

// OnContentChanged queues a normal-priority regeneration when the document's
// content no longer matches its summary. It reports whether an entry was added.
func (s *Scheduler) OnContentChanged(ctx context.Context, documentID string) (bool, error) {
	reason, err := s.skipReason(ctx, documentID)
	if err != nil {
		return false, err
	}
	if reason == skipMissing {
		return false, apperr.NotFound("document not found")
	}
	if reason != "" {
		s.logger.Debug("content change ignored", zap.String("document_id", documentID), zap.String("reason", reason))
		return false, nil
	}
	opts, err := s.enqueueOptions(ctx, documentID, taskqueue.PriorityNormal)
	if err != nil {
		return false, err
	}
	enqueued, err := s.queue.Enqueue(ctx, documentID, opts)
	if err != nil {
		return false, err
	}
	if enqueued {
		s.updateDepth(ctx)
	}
	return enqueued, nil
}

// EnqueueHighPriority queues documentID at high priority and schedules it for
// single-item processing after the fast-path delay.
func (s *Scheduler) EnqueueHighPriority(ctx context.Context, documentID string) (EnqueueResult, error) {
	if _, err := s.summaries.Document(ctx, documentID); err != nil {
		return EnqueueResult{}, err
	}
	opts, err := s.enqueueOptions(ctx, documentID, taskqueue.PriorityHigh)
	if err != nil {
		return EnqueueResult{}, err
	}
	enqueued, err := s.queue.Enqueue(ctx, documentID, opts)
	if err != nil {
		return EnqueueResult{}, err
	}
	runAt, err := s.queue.ScheduleFastPath(ctx, documentID, s.fastPathDelay)
	if err != nil {
		return EnqueueResult{}, err
	}
	s.updateDepth(ctx)
	return EnqueueResult{Enqueued: enqueued, RunAt: runAt}, nil
}

// enqueueOptions captures the style to generate with at enqueue time.
func (s *Scheduler) enqueueOptions(ctx context.Context, documentID string, p taskqueue.Priority) (taskqueue.EnqueueOptions, error) {
	length, tone, err := s.summaries.Style(ctx, documentID)
	if err != nil {
		return taskqueue.EnqueueOptions{}, err
	}
	return taskqueue.EnqueueOptions{Priority: p, Length: length, Tone: tone}, nil
}

// Status is the queue snapshot; NextScheduledRun is the earlier of the next
// periodic run and the next pending timer.
func (s *Scheduler) Status(ctx context.Context) (taskqueue.Status, error) {
	st, err := s.queue.Status(ctx)
	if err != nil {
		return st, err
	}
	s.mu.Lock()
	nextTick := s.nextTick
	s.mu.Unlock()
	if nextTick != nil {
		if at, ok := nextTick(); ok && (st.NextScheduledRun == nil || at.Before(*st.NextScheduledRun)) {
			st.NextScheduledRun = &at
		}
	}
	return st, nil
}

func (s *Scheduler) Entries(ctx context.Context) ([]taskqueue.Entry, error) {
	return s.queue.Entries(ctx)
}

func (s *Scheduler) Remove(ctx context.Context, documentID string) (bool, error) {
	removed, err := s.queue.Remove(ctx, documentID)
	if err == nil && removed {
		s.updateDepth(ctx)
	}
	return removed, err
}

func (s *Scheduler) Clear(ctx context.Context) error {
	if err := s.queue.Clear(ctx); err != nil {
		return err
	}
	s.metrics.SetQueueDepth(0)
	return nil
}

// RecentActivity lists the logged attempts, newest first.
func (s *Scheduler) RecentActivity(ctx context.Context) ([]Record, error) {
	return s.activity.Recent(ctx)
}

func (s *Scheduler) process(ctx context.Context, e taskqueue.Entry, rep *Report) {
	rep.Processed++
	log := s.logger.With(zap.String("document_id", e.DocumentID))

	reason, err := s.skipReason(ctx, e.DocumentID)
	if err == nil && reason != "" {
		rep.Skipped++
		s.metrics.QueueJob("skipped")
		log.Debug("summary job skipped", zap.String("reason", reason))
		return
	}
	if err == nil {
		var res *summary.Result
		res, err = s.summaries.Generate(ctx, e.DocumentID, summary.GenerateOptions{
			Length:          e.Length,
			Tone:            e.Tone,
			ForceRegenerate: true,
		})
		if err == nil {
			rep.Generated++
			s.metrics.QueueJob("success")
			s.record(ctx, e.DocumentID, StatusSuccess, Outcome{
				Summary:          res.Summary,
				Source:           res.Source,
				TokenCount:       res.TokenCount,
				ProcessingTimeMs: res.ProcessingTimeMs,
				RetryCount:       e.RetryCount,
			})
			return
		}
	}

	failure := Outcome{Error: apperr.Sanitize(err.Error()), Kind: string(apperr.KindOf(err)), RetryCount: e.RetryCount}
	if !apperr.Retryable(err) {
		s.queue.Drop(e, err)
		rep.Dropped++
		s.metrics.QueueJob("dropped")
		s.record(ctx, e.DocumentID, StatusDropped, failure)
		return
	}

	rr, rerr := s.queue.RequeueWithBackoff(ctx, e, err)
	if rerr != nil {
		log.Error("requeue failed job", zap.Error(rerr), zap.NamedError("cause", err))
		rep.Dropped++
		s.metrics.QueueJob("dropped")
		s.record(ctx, e.DocumentID, StatusDropped, failure)
		return
	}
	failure.RetryCount = rr.RetryCount
	if !rr.Rescheduled {
		rep.Dropped++
		s.metrics.QueueJob("dropped")
		s.record(ctx, e.DocumentID, StatusDropped, failure)
		return
	}
	retryAt := rr.RetryAt
	failure.RetryAt = &retryAt
	rep.Deferred++
	s.metrics.QueueJob("deferred")
	s.record(ctx, e.DocumentID, StatusError, failure)
}

// skipReason applies the skip rules in order. An empty reason means generate.
func (s *Scheduler) skipReason(ctx context.Context, documentID string) (string, error) {
	doc, err := s.summaries.Document(ctx, documentID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return skipMissing, nil
		}
		return "", err
	}
	if !doc.Published {
		return skipUnpublished, nil
	}
	rec, err := s.summaries.Record(ctx, documentID)
	if err != nil {
		return "", err
	}
	if rec != nil && rec.IsPinned {
		return skipPinned, nil
	}
	if rec != nil && rec.ContentHash != "" && rec.ContentHash == s.summaries.Fingerprint(*doc) {
		return skipUnchanged, nil
	}
	autoRegen, err := s.summaries.AutoRegen(ctx, documentID)
	if err != nil {
		return "", err
	}
	if !autoRegen {
		return skipAutoRegen, nil
	}
	return "", nil
}

func (s *Scheduler) record(ctx context.Context, documentID, status string, out Outcome) {
	if s.activity == nil {
		return
	}
	r := Record{DocumentID: documentID, Status: status, Timestamp: s.queue.Now(), Result: out}
	if err := s.activity.Append(ctx, r); err != nil {
		s.logger.Warn("append activity record", zap.String("document_id", documentID), zap.Error(err))
	}
}

func (s *Scheduler) updateDepth(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	entries, err := s.queue.Entries(ctx)
	if err != nil {
		return
	}
	s.metrics.SetQueueDepth(len(entries))
}
