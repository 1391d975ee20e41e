package document

import (
	"context"
	"sync"

	"github.com/mx-space/tldr/internal/modules/processing/content"
)

// MemorySource is a DocumentSource the host fills directly.
type MemorySource struct {
	mu   sync.RWMutex
	docs map[string]content.Document
}

func NewMemorySource(docs ...content.Document) *MemorySource {
	m := &MemorySource{docs: make(map[string]content.Document, len(docs))}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *MemorySource) Get(_ context.Context, id string) (*content.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *MemorySource) Put(doc content.Document) {
	m.mu.Lock()
	m.docs[doc.ID] = doc
	m.mu.Unlock()
}

func (m *MemorySource) Remove(id string) {
	m.mu.Lock()
	delete(m.docs, id)
	m.mu.Unlock()
}
