package summary

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("absent is nil", func(t *testing.T) {
		got, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("put then get round trips", func(t *testing.T) {
		at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		tokens := 42
		in := &Summary{
			DocumentID:  "p1",
			Text:        "short text",
			AICopy:      "short text",
			Source:      "raw",
			Length:      "short",
			Tone:        "neutral",
			ContentHash: "abc",
			GeneratedAt: &at,
			TokenCount:  &tokens,
			AutoRegen:   true,
		}
		require.NoError(t, store.Put(ctx, in))

		got, err := store.Get(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "short text", got.Text)
		assert.Equal(t, "abc", got.ContentHash)
		assert.True(t, got.AutoRegen)
		assert.False(t, got.IsPinned)
		require.NotNil(t, got.TokenCount)
		assert.Equal(t, 42, *got.TokenCount)
		require.NotNil(t, got.GeneratedAt)
		assert.True(t, at.Equal(*got.GeneratedAt))
	})

	t.Run("put overwrites", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, &Summary{DocumentID: "p2", Text: "one", AutoRegen: true}))
		require.NoError(t, store.Put(ctx, &Summary{DocumentID: "p2", Text: "two", IsPinned: true}))

		got, err := store.Get(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, "two", got.Text)
		assert.True(t, got.IsPinned)
		assert.False(t, got.AutoRegen)
		assert.Nil(t, got.TokenCount)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, &Summary{DocumentID: "p3", Text: "x"}))
		require.NoError(t, store.Delete(ctx, "p3"))
		require.NoError(t, store.Delete(ctx, "p3"))
		got, err := store.Get(ctx, "p3")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	in := &Summary{DocumentID: "p1", Text: "kept"}
	require.NoError(t, store.Put(ctx, in))
	in.Text = "mutated"

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Text)
}

func TestBadgerStore(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runStoreContract(t, store)
}
