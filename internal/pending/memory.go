package pending

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps the pending map in process memory
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]bool
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]bool)}
}

// Load implements Store
func (m *MemoryStore) Load(context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.entries), nil
}

// Put implements Store
func (m *MemoryStore) Put(_ context.Context, hostnames []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hostnames {
		m.entries[h] = true
	}
	return nil
}

// Delete implements Store
func (m *MemoryStore) Delete(_ context.Context, hostnames []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hostnames {
		delete(m.entries, h)
	}
	return nil
}

// Clear implements Store
func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	return nil
}

// Close implements Store
func (m *MemoryStore) Close() error { return nil }
