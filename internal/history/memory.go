package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/claimsentry/backend/internal/core"
)

// MemoryStore is an in-process Store with a bounded retention horizon.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []core.Event
	seen      map[string]struct{}
	retention time.Duration
}

// NewMemoryStore retains events for the given horizon (DefaultSpan when
// zero). Older events are pruned on append.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultSpan
	}
	return &MemoryStore{
		seen:      make(map[string]struct{}),
		retention: retention,
	}
}

func (m *MemoryStore) Append(_ context.Context, ev core.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.seen[ev.ID]; dup {
		return nil
	}
	m.seen[ev.ID] = struct{}{}
	m.events = append(m.events, ev)
	sort.Slice(m.events, func(i, j int) bool { return m.events[i].Timestamp.Before(m.events[j].Timestamp) })

	cutoff := ev.Timestamp.Add(-m.retention)
	pruned := m.events[:0]
	for _, e := range m.events {
		if e.Timestamp.After(cutoff) {
			pruned = append(pruned, e)
		} else {
			delete(m.seen, e.ID)
		}
	}
	m.events = pruned
	return nil
}

func (m *MemoryStore) Window(_ context.Context, span time.Duration, ref time.Time) (core.Window, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	low := ref.Add(-span)
	window := make(core.Window, 0, len(m.events))
	for _, e := range m.events {
		if e.Timestamp.After(low) && !e.Timestamp.After(ref) {
			window = append(window, e)
		}
	}
	return window, nil
}

// Len reports the retained event count.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
