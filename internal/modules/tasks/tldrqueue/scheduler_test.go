package tldrqueue

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/modules/content/document"
	"github.com/mx-space/tldr/internal/modules/processing/ai"
	"github.com/mx-space/tldr/internal/modules/processing/content"
	"github.com/mx-space/tldr/internal/modules/processing/summary"
	"github.com/mx-space/tldr/internal/pkg/apperr"
	"github.com/mx-space/tldr/internal/pkg/metrics"
	"github.com/mx-space/tldr/internal/pkg/taskqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var epoch = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type provider struct {
	calls atomic.Int32
	err   error
}

func (p *provider) Summarize(context.Context, string, string, string) (*ai.Result, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	n := 21
	return &ai.Result{Text: "A fresh summary.", TokenCount: &n}, nil
}

func (p *provider) TestConnection(context.Context) (string, error) { return "ok", nil }

type harness struct {
	sched    *Scheduler
	queue    *taskqueue.Queue
	svc      *summary.Service
	store    *summary.MemoryStore
	docs     *document.MemorySource
	provider *provider
	activity *MemoryActivity
	clock    *clock
	metrics  *metrics.Metrics
	logs     *observer.ObservedLogs
}

func post(id string) content.Document {
	return content.Document{ID: id, Kind: "post", Title: "Post " + id, Body: "Body of " + id + ".", Published: true}
}

func newHarness(t *testing.T, docs ...content.Document) *harness {
	t.Helper()
	h := &harness{
		clock:    &clock{t: epoch},
		store:    summary.NewMemoryStore(),
		docs:     document.NewMemorySource(docs...),
		provider: &provider{},
		metrics:  metrics.New(),
	}
	core, logs := observer.New(zap.InfoLevel)
	h.logs = logs
	logger := zap.New(core)

	settings := &config.StaticSettings{Config: config.DefaultFullConfig()}
	normalizer := content.NewNormalizer()
	h.svc = summary.NewService(summary.Deps{
		Store:      h.store,
		Documents:  h.docs,
		Sourcer:    content.NewSourcer(normalizer, nil, settings, 0, nil),
		Provider:   h.provider,
		Normalizer: normalizer,
		Settings:   settings,
		Now:        h.clock.Now,
	}, logger)
	h.queue = taskqueue.New(taskqueue.NewMemoryStore(), taskqueue.Options{Now: h.clock.Now}, logger)
	h.activity = NewMemoryActivity(0, 0, h.clock.Now)
	h.sched = New(h.queue, h.svc, h.activity, h.metrics, Options{}, logger)
	return h
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func (h *harness) enqueue(t *testing.T, id string) {
	t.Helper()
	ok, err := h.queue.Enqueue(context.Background(), id, taskqueue.EnqueueOptions{Priority: taskqueue.PriorityNormal})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTickGeneratesAndLogs(t *testing.T) {
	h := newHarness(t, post("p1"))
	ctx := context.Background()
	h.enqueue(t, "p1")

	rep, err := h.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Processed: 1, Generated: 1}, rep)
	assert.EqualValues(t, 1, h.provider.calls.Load())

	rec, _ := h.store.Get(ctx, "p1")
	require.NotNil(t, rec)
	assert.Equal(t, "A fresh summary.", rec.Text)

	activity, _ := h.sched.RecentActivity(ctx)
	require.Len(t, activity, 1)
	assert.Equal(t, StatusSuccess, activity[0].Status)
	assert.Equal(t, "p1", activity[0].DocumentID)
	assert.Equal(t, epoch, activity[0].Timestamp)

	entries, _ := h.queue.Entries(ctx)
	assert.Empty(t, entries)
	assert.Contains(t, scrape(t, h.metrics), `tldr_queue_jobs_total{outcome="success"} 1`)
}

func TestTickSkipsUnchangedContent(t *testing.T) {
	h := newHarness(t, post("p1"))
	ctx := context.Background()
	_, err := h.svc.Generate(ctx, "p1", summary.GenerateOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, h.provider.calls.Load())

	h.enqueue(t, "p1")
	rep, err := h.sched.Tick(ctx)
	require.NoError(t, err)

	assert.Equal(t, Report{Processed: 1, Skipped: 1}, rep)
	assert.EqualValues(t, 1, h.provider.calls.Load())
	entries, _ := h.queue.Entries(ctx)
	assert.Empty(t, entries)
	activity, _ := h.sched.RecentActivity(ctx)
	assert.Empty(t, activity)
}

func TestTickSkipRules(t *testing.T) {
	draft := post("draft")
	draft.Published = false
	h := newHarness(t, draft, post("pinned"), post("manual"), post("edited"))
	ctx := context.Background()

	require.NoError(t, h.svc.SetPinned(ctx, "pinned", true))
	require.NoError(t, h.svc.SetAutoRegen(ctx, "manual", false))
	for _, id := range []string{"gone", "draft", "pinned", "manual"} {
		h.enqueue(t, id)
	}

	rep, err := h.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Processed: 4, Skipped: 4}, rep)
	assert.Zero(t, h.provider.calls.Load())
}

func TestPinnedAfterQueueingStillWins(t *testing.T) {
	h := newHarness(t, post("p1"))
	ctx := context.Background()
	h.enqueue(t, "p1")
	require.NoError(t, h.svc.SetPinned(ctx, "p1", true))

	_, err := h.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, h.provider.calls.Load())
}

func TestTickBatchCap(t *testing.T) {
	var docs []content.Document
	for i := 0; i < 7; i++ {
		docs = append(docs, post(fmt.Sprintf("p%d", i)))
	}
	h := newHarness(t, docs...)
	ctx := context.Background()
	for _, d := range docs {
		h.enqueue(t, d.ID)
	}

	rep, err := h.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Generated)

	entries, _ := h.queue.Entries(ctx)
	require.Len(t, entries, 2)
	assert.Equal(t, "p5", entries[0].DocumentID)
	assert.Equal(t, "p6", entries[1].DocumentID)
	assert.Contains(t, scrape(t, h.metrics), "tldr_queue_depth 2")
}

func TestBackoffSchedule(t *testing.T) {
	h := newHarness(t, post("p1"))
	ctx := context.Background()
	h.provider.err = apperr.New(apperr.KindTransport, "dial tcp: connection refused")
	h.enqueue(t, "p1")

	rep, err := h.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deferred)
	st, _ := h.queue.Status(ctx)
	require.NotNil(t, st.NextScheduledRun)
	assert.Equal(t, epoch.Add(300*time.Second), *st.NextScheduledRun)

	h.clock.Advance(299 * time.Second)
	rep, _ = h.sched.RunDue(ctx)
	assert.Zero(t, rep.Processed)

	h.clock.Advance(time.Second)
	rep, err = h.sched.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deferred)
	st, _ = h.queue.Status(ctx)
	require.NotNil(t, st.NextScheduledRun)
	assert.Equal(t, h.clock.Now().Add(600*time.Second), *st.NextScheduledRun)

	h.clock.Advance(600 * time.Second)
	rep, err = h.sched.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Dropped)

	st, _ = h.queue.Status(ctx)
	assert.Nil(t, st.NextScheduledRun)
	assert.Zero(t, st.Total)
	assert.EqualValues(t, 3, h.provider.calls.Load())

	activity, _ := h.sched.RecentActivity(ctx)
	require.Len(t, activity, 3)
	assert.Equal(t, StatusDropped, activity[0].Status)
	assert.Equal(t, 3, activity[0].Result.RetryCount)
	assert.Equal(t, StatusError, activity[1].Status)
	assert.Equal(t, StatusError, activity[2].Status)
	assert.Equal(t, "transport", activity[2].Result.Kind)

	dropped := h.logs.FilterMessage("summary job dropped").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, zap.WarnLevel, dropped[0].Level)

	h.clock.Advance(24 * time.Hour)
	rep, _ = h.sched.RunDue(ctx)
	assert.Zero(t, rep.Processed)
}

func TestNonRetryableFailureDropsImmediately(t *testing.T) {
	h := newHarness(t, post("p1"))
	ctx := context.Background()
	h.provider.err = apperr.New(apperr.KindAuth, "invalid api key")
	h.enqueue(t, "p1")

	rep, err := h.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Processed: 1, Dropped: 1}, rep)

	st, _ := h.queue.Status(ctx)
	assert.Zero(t, st.Deferred)
	activity, _ := h.sched.RecentActivity(ctx)
	require.Len(t, activity, 1)
	assert.Equal(t, StatusDropped, activity[0].Status)
	assert.Equal(t, "auth", activity[0].Result.Kind)
}

func TestFastPath(t *testing.T) {
	h := newHarness(t, post("p1"))
	ctx := context.Background()

	res, err := h.sched.EnqueueHighPriority(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, res.Enqueued)
	assert.Equal(t, epoch.Add(30*time.Second), res.RunAt)

	entries, _ := h.queue.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, taskqueue.PriorityHigh, entries[0].Priority)

	rep, _ := h.sched.RunDue(ctx)
	assert.Zero(t, rep.Processed)

	h.clock.Advance(30 * time.Second)
	rep, err = h.sched.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Generated)
	entries, _ = h.queue.Entries(ctx)
	assert.Empty(t, entries)
}

func TestFastPathAfterTickDoesNothing(t *testing.T) {
	h := newHarness(t, post("p1"))
	ctx := context.Background()

	_, err := h.sched.EnqueueHighPriority(ctx, "p1")
	require.NoError(t, err)
	_, err = h.sched.Tick(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, h.provider.calls.Load())

	h.clock.Advance(time.Minute)
	rep, err := h.sched.RunDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Processed)
	assert.EqualValues(t, 1, h.provider.calls.Load())
}

func TestEnqueueHighPriorityMissingDocument(t *testing.T) {
	h := newHarness(t)
	_, err := h.sched.EnqueueHighPriority(context.Background(), "ghost")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestOnContentChanged(t *testing.T) {
	draft := post("draft")
	draft.Published = false
	h := newHarness(t, post("p1"), post("p2"), post("pinned"), draft)
	ctx := context.Background()

	ok, err := h.sched.OnContentChanged(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.sched.OnContentChanged(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.svc.Generate(ctx, "p2", summary.GenerateOptions{})
	require.NoError(t, err)
	ok, _ = h.sched.OnContentChanged(ctx, "p2")
	assert.False(t, ok, "unchanged content")

	h.docs.Put(content.Document{ID: "p2", Title: "Post p2", Body: "Rewritten body.", Published: true})
	ok, _ = h.sched.OnContentChanged(ctx, "p2")
	assert.True(t, ok, "changed content")

	require.NoError(t, h.svc.SetPinned(ctx, "pinned", true))
	ok, _ = h.sched.OnContentChanged(ctx, "pinned")
	assert.False(t, ok)

	ok, _ = h.sched.OnContentChanged(ctx, "draft")
	assert.False(t, ok)

	_, err = h.sched.OnContentChanged(ctx, "ghost")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	st, _ := h.sched.Status(ctx)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 2, st.ByPriority[taskqueue.PriorityNormal])
}

func TestEnqueueCapturesStyle(t *testing.T) {
	h := newHarness(t, post("p1"), post("p2"))
	ctx := context.Background()

	_, err := h.svc.Generate(ctx, "p1", summary.GenerateOptions{Length: config.LengthShort, Tone: config.ToneCasual})
	require.NoError(t, err)
	h.docs.Put(content.Document{ID: "p1", Title: "Post p1", Body: "Rewritten body.", Published: true})

	ok, err := h.sched.OnContentChanged(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = h.sched.EnqueueHighPriority(ctx, "p2")
	require.NoError(t, err)

	entries, err := h.sched.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	byID := map[string]taskqueue.Entry{}
	for _, e := range entries {
		byID[e.DocumentID] = e
	}
	assert.Equal(t, config.LengthShort, byID["p1"].Length)
	assert.Equal(t, config.ToneCasual, byID["p1"].Tone)
	assert.Equal(t, config.LengthMedium, byID["p2"].Length, "no record falls back to defaults")
	assert.Equal(t, config.ToneNeutral, byID["p2"].Tone)

	_, err = h.sched.Tick(ctx)
	require.NoError(t, err)
	rec, _ := h.store.Get(ctx, "p1")
	require.NotNil(t, rec)
	assert.Equal(t, config.LengthShort, rec.Length)
	assert.Equal(t, config.ToneCasual, rec.Tone)
}

func TestStatusCombinesNextTick(t *testing.T) {
	h := newHarness(t, post("p1"))
	ctx := context.Background()

	st, err := h.sched.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.NextScheduledRun)

	tick := epoch.Add(5 * time.Minute)
	h.sched.SetNextTick(func() (time.Time, bool) { return tick, true })
	st, _ = h.sched.Status(ctx)
	require.NotNil(t, st.NextScheduledRun)
	assert.Equal(t, tick, *st.NextScheduledRun)

	_, err = h.sched.EnqueueHighPriority(ctx, "p1")
	require.NoError(t, err)
	st, _ = h.sched.Status(ctx)
	assert.Equal(t, epoch.Add(30*time.Second), *st.NextScheduledRun)
	assert.Equal(t, 1, st.Deferred)
}

func TestRemoveAndClear(t *testing.T) {
	h := newHarness(t, post("p1"), post("p2"))
	ctx := context.Background()
	h.enqueue(t, "p1")
	_, err := h.sched.EnqueueHighPriority(ctx, "p2")
	require.NoError(t, err)

	removed, err := h.sched.Remove(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, _ = h.sched.Remove(ctx, "p1")
	assert.False(t, removed)

	require.NoError(t, h.sched.Clear(ctx))
	st, _ := h.sched.Status(ctx)
	assert.Zero(t, st.Total)
	assert.Zero(t, st.Deferred)
}
