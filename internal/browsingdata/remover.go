// Package browsingdata describes scoped deletion requests handed to the host browser.
package browsingdata

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Data type names as understood by the browser's browsingData API
const (
	Cookies        = "cookies"
	LocalStorage   = "localStorage"
	IndexedDB      = "indexedDB"
	ServiceWorkers = "serviceWorkers"
)

// OriginTypes restricts which storage origins a removal may touch
type OriginTypes struct {
	UnprotectedWeb bool `json:"unprotectedWeb,omitempty"`
}

// RemovalOptions scopes a removal to hostnames inside one cookie store
type RemovalOptions struct {
	OriginTypes   OriginTypes `json:"originTypes"`
	Hostnames     []string    `json:"hostnames"`
	CookieStoreID string      `json:"cookieStoreId,omitempty"`
}

// DataTypeSet selects the data types to remove
type DataTypeSet map[string]bool

// Remover hands a removal request to the browser.
// Implementations must not wait for the deletion to complete.
type Remover interface {
	Remove(opts RemovalOptions, types DataTypeSet) error
}

// Request is one recorded or serialized removal
type Request struct {
	Options   RemovalOptions `json:"options"`
	DataTypes DataTypeSet    `json:"dataToRemove"`
}

// JSONRemover writes each request as one JSON line, for a host process to execute
type JSONRemover struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONRemover creates a remover writing to w
func NewJSONRemover(w io.Writer) *JSONRemover {
	return &JSONRemover{enc: json.NewEncoder(w)}
}

// Remove implements Remover
func (r *JSONRemover) Remove(opts RemovalOptions, types DataTypeSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := struct {
		Kind string `json:"kind"`
		Request
	}{Kind: "remove", Request: Request{Options: opts, DataTypes: types}}
	if err := r.enc.Encode(msg); err != nil {
		return fmt.Errorf("writing removal request: %w", err)
	}
	return nil
}

// Recorder keeps every request in memory
type Recorder struct {
	mu       sync.Mutex
	requests []Request
	// Err is returned from Remove after recording, to simulate browser failures
	Err error
}

// Remove implements Remover
func (r *Recorder) Remove(opts RemovalOptions, types DataTypeSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hostnames := append([]string(nil), opts.Hostnames...)
	opts.Hostnames = hostnames
	copied := make(DataTypeSet, len(types))
	for k, v := range types {
		copied[k] = v
	}
	r.requests = append(r.requests, Request{Options: opts, DataTypes: copied})
	return r.Err
}

// Requests returns the recorded requests in call order
func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

// Reset forgets all recorded requests
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}
