package taskqueue

import (
	"context"
	"time"
)

// Store persists queue entries and timers. Implementations keep entries in
// three FIFO tiers and allow at most one entry and one timer per document.
type Store interface {
	// Insert appends e to its tier. It returns false and changes nothing if an
	// entry for e.DocumentID already exists.
	Insert(ctx context.Context, e Entry) (bool, error)
	// PopFront removes up to n entries, high tier first.
	PopFront(ctx context.Context, n int) ([]Entry, error)
	// Take removes and returns the entry for documentID, or nil.
	Take(ctx context.Context, documentID string) (*Entry, error)
	// List returns all entries in service order without removing them.
	List(ctx context.Context) ([]Entry, error)
	// Remove drops the entry and any timer for documentID.
	Remove(ctx context.Context, documentID string) (bool, error)
	// Clear drops every entry and timer.
	Clear(ctx context.Context) error

	// Schedule stores t, replacing any timer for the same document.
	Schedule(ctx context.Context, t Timer) error
	// PopDue removes and returns timers due at or before now, earliest first.
	PopDue(ctx context.Context, now time.Time) ([]Timer, error)
	// TimerStats returns the number of pending timers and the earliest due time.
	TimerStats(ctx context.Context) (int, *time.Time, error)
}
