package summary

import (
	"context"
	"sync"
)

// MemoryStore keeps summaries in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Summary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Summary)}
}

func (m *MemoryStore) Get(_ context.Context, documentID string) (*Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.items[documentID]), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.DocumentID] = clone(s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, documentID)
	return nil
}
