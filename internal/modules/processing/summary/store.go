package summary

import (
	"context"
	"time"
)

// Summary is the stored TL;DR record for one document.
type Summary struct {
	DocumentID  string
	Text        string
	AICopy      string
	Source      string
	Length      string
	Tone        string
	ContentHash string
	GeneratedAt *time.Time
	TokenCount  *int
	IsPinned    bool
	AutoRegen   bool
}

// Store persists summaries by document id. Get returns nil, nil when absent.
type Store interface {
	Get(ctx context.Context, documentID string) (*Summary, error)
	Put(ctx context.Context, s *Summary) error
	Delete(ctx context.Context, documentID string) error
}

func clone(s *Summary) *Summary {
	if s == nil {
		return nil
	}
	out := *s
	if s.GeneratedAt != nil {
		t := *s.GeneratedAt
		out.GeneratedAt = &t
	}
	if s.TokenCount != nil {
		n := *s.TokenCount
		out.TokenCount = &n
	}
	return &out
}
