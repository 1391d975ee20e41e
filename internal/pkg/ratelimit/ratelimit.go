// Package ratelimit bounds interactive generation per actor with a rolling window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the limiter verdict for one key.
type Decision struct {
	Allowed   bool          `json:"allowed"`
	Limit     int           `json:"limit"`
	Used      int           `json:"used"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"-"`
}

// ResetInSeconds rounds ResetIn up to whole seconds.
func (d Decision) ResetInSeconds() int {
	if d.ResetIn <= 0 {
		return 0
	}
	return int((d.ResetIn + time.Second - 1) / time.Second)
}

// Limiter admits at most Limit events per key within any rolling Window.
type Limiter interface {
	// Allow records an event for key if the window has room.
	Allow(ctx context.Context, key string) (Decision, error)
	// Peek reports the window state without recording anything.
	Peek(ctx context.Context, key string) (Decision, error)
}

func decide(limit, used int, oldest time.Time, window time.Duration, now time.Time, allowed bool) Decision {
	d := Decision{Allowed: allowed, Limit: limit, Used: used, Remaining: max(limit-used, 0)}
	if used > 0 {
		d.ResetIn = max(oldest.Add(window).Sub(now), 0)
	}
	return d
}

// Memory is a process-local Limiter.
type Memory struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	events map[string][]time.Time
}

func NewMemory(limit int, window time.Duration, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{limit: limit, window: window, now: now, events: make(map[string][]time.Time)}
}

func (m *Memory) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-m.window)
	kept := m.events[key][:0]
	for _, at := range m.events[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(m.events, key)
		return nil
	}
	m.events[key] = kept
	return kept
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	events := m.prune(key, now)
	if len(events) >= m.limit {
		return decide(m.limit, len(events), events[0], m.window, now, false), nil
	}
	events = append(events, now)
	m.events[key] = events
	return decide(m.limit, len(events), events[0], m.window, now, true), nil
}

func (m *Memory) Peek(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	events := m.prune(key, now)
	var oldest time.Time
	if len(events) > 0 {
		oldest = events[0]
	}
	return decide(m.limit, len(events), oldest, m.window, now, len(events) < m.limit), nil
}
