package inputcheck

import (
	"context"
	"sync"
)

// MemoryBlocklist is an in-process BlocklistStore seeded from config. Used in
// tests and single-pod deployments without Redis.
type MemoryBlocklist struct {
	mu      sync.RWMutex
	entries map[string]struct{}
}

func NewMemoryBlocklist(wallets []string) *MemoryBlocklist {
	entries := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		entries[w] = struct{}{}
	}
	return &MemoryBlocklist{entries: entries}
}

func (m *MemoryBlocklist) IsBlocked(_ context.Context, wallet string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[wallet]
	return ok, nil
}

// Block adds wallets to the list at runtime (operator action).
func (m *MemoryBlocklist) Block(_ context.Context, wallets ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range wallets {
		m.entries[w] = struct{}{}
	}
	return nil
}

// MemoryVenueOracle is an in-process VenueOracle tracking which venues a
// wallet has been seen on.
type MemoryVenueOracle struct {
	mu     sync.RWMutex
	venues map[string]map[string]struct{} // wallet -> venue set
}

func NewMemoryVenueOracle() *MemoryVenueOracle {
	return &MemoryVenueOracle{venues: make(map[string]map[string]struct{})}
}

// RecordActivity marks a wallet as active on a venue.
func (m *MemoryVenueOracle) RecordActivity(_ context.Context, wallet, venue string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.venues[wallet]
	if !ok {
		set = make(map[string]struct{})
		m.venues[wallet] = set
	}
	set[venue] = struct{}{}
	return nil
}

func (m *MemoryVenueOracle) HasMultiVenueActivity(_ context.Context, wallet string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.venues[wallet]) > 1, nil
}
