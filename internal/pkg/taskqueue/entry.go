package taskqueue

import (
	"strings"
	"time"
)

// Priority orders queue tiers. Lower rank is served first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Priorities lists the tiers in service order.
var Priorities = []Priority{PriorityHigh, PriorityNormal, PriorityLow}

// Rank returns 1 for high, 2 for normal and 3 for low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// ParsePriority maps unknown values to normal.
func ParsePriority(raw string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Entry is one pending "regenerate summary" job. At most one exists per document.
type Entry struct {
	DocumentID string    `json:"documentId"`
	Priority   Priority  `json:"priority"`
	RetryCount int       `json:"retryCount"`
	MaxRetries int       `json:"maxRetries"`
	QueuedAt   time.Time `json:"queuedAt"`
	Length     string    `json:"length"`
	Tone       string    `json:"tone"`
}

// TimerKind distinguishes deferred retries from fast-path triggers.
type TimerKind string

const (
	// TimerRetry carries the entry to re-run after backoff.
	TimerRetry TimerKind = "retry"
	// TimerFastPath processes the live queued entry for the document, if still queued.
	TimerFastPath TimerKind = "fast_path"
)

// Timer is a durable "run at T" trigger, one per document id.
type Timer struct {
	DocumentID string    `json:"documentId"`
	Kind       TimerKind `json:"kind"`
	DueAt      time.Time `json:"dueAt"`
	Entry      *Entry    `json:"entry,omitempty"`
}

// Status is a snapshot of the queue.
type Status struct {
	Total            int              `json:"total"`
	ByPriority       map[Priority]int `json:"byPriority"`
	OldestQueuedAt   *time.Time       `json:"oldestQueuedAt"`
	NextScheduledRun *time.Time       `json:"nextScheduledRun"`
	Deferred         int              `json:"deferred"`
}

// EnqueueOptions are the generation parameters captured at enqueue time.
type EnqueueOptions struct {
	Priority Priority
	Length   string
	Tone     string
}

// RequeueResult reports what RequeueWithBackoff decided.
type RequeueResult struct {
	Rescheduled bool      `json:"rescheduled"`
	RetryCount  int       `json:"retryCount"`
	RetryAt     time.Time `json:"retryAt,omitempty"`
}
