// Package registry tracks which canonical symbols each connection is subscribed to.
package registry

import (
	"sort"
	"sync"

	"quote-broadcaster/src/models"
)

type symbolSet map[models.MCanonicalSymbol]struct{}

// Registry is safe for concurrent use by gateway handlers and the scheduler.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]symbolSet
}

func New() *Registry {
	return &Registry{conns: make(map[string]symbolSet)}
}

// -----------------------------------------------------------------------------

// Register creates an empty entry for an authenticated connection.
func (r *Registry) Register(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		r.conns[connID] = symbolSet{}
	}
}

// -----------------------------------------------------------------------------

// Subscribe adds symbols, creating the entry if needed. It returns how many were new.
func (r *Registry) Subscribe(connID string, symbols []models.MCanonicalSymbol) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[connID]
	if !ok {
		set = symbolSet{}
		r.conns[connID] = set
	}
	added := 0
	for _, s := range symbols {
		if _, ok := set[s]; !ok {
			set[s] = struct{}{}
			added++
		}
	}
	return added
}

// -----------------------------------------------------------------------------

// Unsubscribe removes symbols; absent symbols and unknown ids are ignored.
func (r *Registry) Unsubscribe(connID string, symbols []models.MCanonicalSymbol) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[connID]
	if !ok {
		return 0
	}
	removed := 0
	for _, s := range symbols {
		if _, ok := set[s]; ok {
			delete(set, s)
			removed++
		}
	}
	return removed
}

// -----------------------------------------------------------------------------

// Drop deletes the connection entry. Unknown ids are a no-op.
func (r *Registry) Drop(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
}

// -----------------------------------------------------------------------------

// Snapshot returns a point-in-time deep copy with symbols sorted per connection.
func (r *Registry) Snapshot() map[string][]models.MCanonicalSymbol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]models.MCanonicalSymbol, len(r.conns))
	for id, set := range r.conns {
		syms := make([]models.MCanonicalSymbol, 0, len(set))
		for s := range set {
			syms = append(syms, s)
		}
		sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
		out[id] = syms
	}
	return out
}

// -----------------------------------------------------------------------------

// Len is the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Subscriptions is the total number of (connection, symbol) pairs.
func (r *Registry) Subscriptions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.conns {
		n += len(set)
	}
	return n
}
