package tldrqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redisc "github.com/mx-space/tldr/internal/pkg/redis"
)

const (
	DefaultActivityCap       = 50
	DefaultActivityRetention = 24 * time.Hour
)

// Activity statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusDropped = "dropped"
)

// Outcome is the result attached to an activity record.
type Outcome struct {
	Summary          string     `json:"summary,omitempty"`
	Source           string     `json:"source,omitempty"`
	TokenCount       *int       `json:"tokenCount,omitempty"`
	ProcessingTimeMs int64      `json:"processingTimeMs,omitempty"`
	Error            string     `json:"error,omitempty"`
	Kind             string     `json:"kind,omitempty"`
	RetryCount       int        `json:"retryCount"`
	RetryAt          *time.Time `json:"retryAt,omitempty"`
}

// Record is one background processing attempt.
type Record struct {
	DocumentID string    `json:"documentId"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Result     Outcome   `json:"result"`
}

// ActivityLog keeps the most recent records, newest first.
type ActivityLog interface {
	Append(ctx context.Context, r Record) error
	Recent(ctx context.Context) ([]Record, error)
}

func fresh(records []Record, cutoff time.Time) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Timestamp.After(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// MemoryActivity is a process-local ActivityLog.
type MemoryActivity struct {
	mu        sync.Mutex
	cap       int
	retention time.Duration
	now       func() time.Time
	items     []Record
}

func NewMemoryActivity(capacity int, retention time.Duration, now func() time.Time) *MemoryActivity {
	if capacity <= 0 {
		capacity = DefaultActivityCap
	}
	if retention <= 0 {
		retention = DefaultActivityRetention
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryActivity{cap: capacity, retention: retention, now: now}
}

func (m *MemoryActivity) Append(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]Record{r}, m.items...)
	if len(m.items) > m.cap {
		m.items = m.items[:m.cap]
	}
	return nil
}

func (m *MemoryActivity) Recent(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fresh(m.items, m.now().Add(-m.retention)), nil
}

// RedisActivity stores the log as a capped Redis list whose TTL is refreshed
// on every write.
type RedisActivity struct {
	rc        *redisc.Client
	key       string
	cap       int
	retention time.Duration
	now       func() time.Time
}

func NewRedisActivity(rc *redisc.Client, key string, capacity int, retention time.Duration, now func() time.Time) *RedisActivity {
	if key == "" {
		key = "tldr:activity"
	}
	if capacity <= 0 {
		capacity = DefaultActivityCap
	}
	if retention <= 0 {
		retention = DefaultActivityRetention
	}
	if now == nil {
		now = time.Now
	}
	return &RedisActivity{rc: rc, key: key, cap: capacity, retention: retention, now: now}
}

func (a *RedisActivity) Append(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	pipe := a.rc.Raw().TxPipeline()
	pipe.LPush(ctx, a.key, data)
	pipe.LTrim(ctx, a.key, 0, int64(a.cap-1))
	pipe.Expire(ctx, a.key, a.retention)
	_, err = pipe.Exec(ctx)
	return err
}

func (a *RedisActivity) Recent(ctx context.Context) ([]Record, error) {
	raw, err := a.rc.Raw().LRange(ctx, a.key, 0, -1).Result()
	if err != nil {
		if redisc.IsNil(err) {
			return []Record{}, nil
		}
		return nil, err
	}
	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var r Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			continue
		}
		records = append(records, r)
	}
	return fresh(records, a.now().Add(-a.retention)), nil
}
