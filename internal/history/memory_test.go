package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimsentry/backend/internal/core"
)

func event(id string, ts time.Time) core.Event {
	return core.Event{
		ID:        id,
		Wallet:    "0x1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b",
		ValueUSD:  1000,
		Timestamp: ts,
		Chain:     "arbitrum",
	}
}

func TestMemoryStore_WindowBounds(t *testing.T) {
	store := NewMemoryStore(DefaultSpan)
	ctx := context.Background()
	ref := time.Now()

	require.NoError(t, store.Append(ctx, event("old", ref.Add(-25*time.Hour))))
	require.NoError(t, store.Append(ctx, event("in-a", ref.Add(-3*time.Hour))))
	require.NoError(t, store.Append(ctx, event("in-b", ref.Add(-time.Minute))))
	require.NoError(t, store.Append(ctx, event("future", ref.Add(time.Hour))))

	window, err := store.Window(ctx, DefaultSpan, ref)
	require.NoError(t, err)
	require.Len(t, window, 2, "only events inside (ref-span, ref] qualify")
	assert.Equal(t, "in-a", window[0].ID, "window is ordered oldest first")
	assert.Equal(t, "in-b", window[1].ID)
}

func TestMemoryStore_DeduplicatesByID(t *testing.T) {
	store := NewMemoryStore(DefaultSpan)
	ctx := context.Background()
	ref := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, event("same", ref.Add(-time.Minute))))
	}

	window, err := store.Window(ctx, DefaultSpan, ref)
	require.NoError(t, err)
	assert.Len(t, window, 1, "replayed submissions must not inflate the window")
}

func TestMemoryStore_PrunesBeyondRetention(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	ref := time.Now()

	for i := 0; i < 10; i++ {
		ts := ref.Add(-time.Duration(10-i) * 30 * time.Minute)
		require.NoError(t, store.Append(ctx, event(fmt.Sprintf("evt-%d", i), ts)))
	}

	assert.LessOrEqual(t, store.Len(), 3, "events older than the retention horizon are pruned")
}
