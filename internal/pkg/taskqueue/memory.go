package taskqueue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. It does not survive restarts.
type MemoryStore struct {
	mu      sync.Mutex
	tiers   map[Priority][]Entry
	index   map[string]Priority
	timers  timerHeap
	timerAt map[string]*timerItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tiers:   make(map[Priority][]Entry, len(Priorities)),
		index:   make(map[string]Priority),
		timerAt: make(map[string]*timerItem),
	}
}

func (m *MemoryStore) Insert(_ context.Context, e Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[e.DocumentID]; ok {
		return false, nil
	}
	p := ParsePriority(string(e.Priority))
	e.Priority = p
	m.tiers[p] = append(m.tiers[p], e)
	m.index[e.DocumentID] = p
	return true, nil
}

func (m *MemoryStore) PopFront(_ context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, n)
	for _, p := range Priorities {
		if len(out) >= n {
			break
		}
		tier := m.tiers[p]
		k := min(n-len(out), len(tier))
		for _, e := range tier[:k] {
			delete(m.index, e.DocumentID)
		}
		out = append(out, tier[:k]...)
		m.tiers[p] = append([]Entry(nil), tier[k:]...)
	}
	return out, nil
}

func (m *MemoryStore) Take(_ context.Context, documentID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.takeLocked(documentID)
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemoryStore) takeLocked(documentID string) (Entry, bool) {
	p, ok := m.index[documentID]
	if !ok {
		return Entry{}, false
	}
	tier := m.tiers[p]
	for i, e := range tier {
		if e.DocumentID == documentID {
			m.tiers[p] = append(tier[:i:i], tier[i+1:]...)
			delete(m.index, documentID)
			return e, true
		}
	}
	delete(m.index, documentID)
	return Entry{}, false
}

func (m *MemoryStore) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.index))
	for _, p := range Priorities {
		out = append(out, m.tiers[p]...)
	}
	return out, nil
}

func (m *MemoryStore) Remove(_ context.Context, documentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, removed := m.takeLocked(documentID)
	if it, ok := m.timerAt[documentID]; ok {
		heap.Remove(&m.timers, it.index)
		delete(m.timerAt, documentID)
		removed = true
	}
	return removed, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers = make(map[Priority][]Entry, len(Priorities))
	m.index = make(map[string]Priority)
	m.timers = nil
	m.timerAt = make(map[string]*timerItem)
	return nil
}

func (m *MemoryStore) Schedule(_ context.Context, t Timer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.timerAt[t.DocumentID]; ok {
		it.timer = t
		heap.Fix(&m.timers, it.index)
		return nil
	}
	it := &timerItem{timer: t}
	heap.Push(&m.timers, it)
	m.timerAt[t.DocumentID] = it
	return nil
}

func (m *MemoryStore) PopDue(_ context.Context, now time.Time) ([]Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Timer
	for m.timers.Len() > 0 && !m.timers[0].timer.DueAt.After(now) {
		it := heap.Pop(&m.timers).(*timerItem)
		delete(m.timerAt, it.timer.DocumentID)
		out = append(out, it.timer)
	}
	return out, nil
}

func (m *MemoryStore) TimerStats(_ context.Context) (int, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timers.Len() == 0 {
		return 0, nil, nil
	}
	next := m.timers[0].timer.DueAt
	return m.timers.Len(), &next, nil
}

type timerItem struct {
	timer Timer
	index int
}

// timerHeap is a min-heap on DueAt.
type timerHeap []*timerItem

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return h[i].timer.DueAt.Before(h[j].timer.DueAt) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	it := x.(*timerItem)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}
