package settings

import (
	"sync"
	"sync/atomic"
)

// ChangeFunc is notified with the new snapshot and the keys that changed
type ChangeFunc func(next *Snapshot, changed []string)

// Holder owns the current snapshot.
// Replace swaps the whole reference, so a reader holding a snapshot keeps a consistent view.
type Holder struct {
	current atomic.Pointer[Snapshot]

	mu          sync.Mutex
	subscribers []ChangeFunc
}

// NewHolder creates a holder with an initial snapshot (Defaults if nil)
func NewHolder(initial *Snapshot) *Holder {
	if initial == nil {
		initial = Defaults()
	}
	h := &Holder{}
	h.current.Store(initial)
	return h
}

// Get returns the current snapshot
func (h *Holder) Get() *Snapshot {
	return h.current.Load()
}

// Subscribe registers fn for change notifications, called in registration order
func (h *Holder) Subscribe(fn ChangeFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, fn)
}

// Replace installs next and notifies subscribers when any key changed.
// Returns the changed keys.
func (h *Holder) Replace(next *Snapshot) []string {
	if next == nil {
		return nil
	}
	prev := h.current.Swap(next)
	changed := ChangedKeys(prev, next)
	if len(changed) == 0 {
		return nil
	}

	h.mu.Lock()
	subs := append([]ChangeFunc(nil), h.subscribers...)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(next, changed)
	}
	return changed
}
