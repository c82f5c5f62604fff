// Package pending keeps the durable set of hostnames queued for deferred cleanup.
package pending

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/bnema/sitedata-sweeper/internal/models"
	"go.uber.org/zap"
)

// Store persists the pending map (hostname -> marker)
type Store interface {
	Load(ctx context.Context) (map[string]bool, error)
	Put(ctx context.Context, hostnames []string) error
	Delete(ctx context.Context, hostnames []string) error
	Clear(ctx context.Context) error
	Close() error
}

// Set is the in-memory view of the pending map, written through to a Store.
// Store failures are logged; the in-memory view stays authoritative for the session.
type Set struct {
	entries map[string]bool
	store   Store
	log     *zap.Logger
}

// Open loads the set from store
func Open(ctx context.Context, store Store, log *zap.Logger) (*Set, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	entries, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pending cleanup set: %w", err)
	}
	if entries == nil {
		entries = make(map[string]bool)
	}
	return &Set{entries: entries, store: store, log: log}, nil
}

// NewMemory creates a set without durable storage
func NewMemory() *Set {
	return &Set{entries: make(map[string]bool), store: NewMemoryStore(), log: zap.NewNop()}
}

// Add queues hostnames for deferred cleanup
func (s *Set) Add(hostnames ...string) {
	var added []string
	for _, h := range hostnames {
		h = models.NormalizeHostname(h)
		if h == "" || s.entries[h] {
			continue
		}
		s.entries[h] = true
		added = append(added, h)
	}
	if len(added) == 0 {
		return
	}
	if err := s.store.Put(context.Background(), added); err != nil {
		s.log.Warn("persisting pending cleanup failed", zap.Strings("hostnames", added), zap.Error(err))
	}
}

// Remove drops hostnames from the set
func (s *Set) Remove(hostnames ...string) {
	var removed []string
	for _, h := range hostnames {
		h = models.NormalizeHostname(h)
		if _, ok := s.entries[h]; !ok {
			continue
		}
		delete(s.entries, h)
		removed = append(removed, h)
	}
	if len(removed) == 0 {
		return
	}
	if err := s.store.Delete(context.Background(), removed); err != nil {
		s.log.Warn("persisting pending cleanup failed", zap.Strings("hostnames", removed), zap.Error(err))
	}
}

// Forget removes the cleaned hostnames that are no longer open.
// Hostnames still open stay queued for a later leave or startup pass.
func (s *Set) Forget(cleaned []string, isOpen func(hostname string) bool) {
	var done []string
	for _, h := range cleaned {
		if isOpen != nil && isOpen(h) {
			continue
		}
		done = append(done, h)
	}
	s.Remove(done...)
}

// Contains reports whether a hostname is queued
func (s *Set) Contains(hostname string) bool {
	return s.entries[models.NormalizeHostname(hostname)]
}

// Hostnames returns the queued hostnames, sorted
func (s *Set) Hostnames() []string {
	return slices.Sorted(maps.Keys(s.entries))
}

// Entries returns a copy of the pending map
func (s *Set) Entries() map[string]bool {
	return maps.Clone(s.entries)
}

// Len returns the number of queued hostnames
func (s *Set) Len() int {
	return len(s.entries)
}

// Clear empties the set
func (s *Set) Clear() {
	clear(s.entries)
	if err := s.store.Clear(context.Background()); err != nil {
		s.log.Warn("clearing pending cleanup failed", zap.Error(err))
	}
}

// Close releases the store
func (s *Set) Close() error {
	return s.store.Close()
}
