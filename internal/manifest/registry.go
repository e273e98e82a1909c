package manifest

import (
	"sync"
)

// Snapshot is one installed build result.
type Snapshot struct {
	Manifest  Manifest
	SourceMap SourceMap
}

// Registry is a thread-safe holder for the installed snapshot. Readers see
// either the previous snapshot or the new one, never a mix.
type Registry struct {
	mu        sync.RWMutex
	namespace string
	current   Snapshot
}

// NewRegistry returns a registry serving initial.
func NewRegistry(namespace string, initial Snapshot) *Registry {
	return &Registry{namespace: namespace, current: initial}
}

// Swap atomically replaces the installed snapshot and returns the old one.
func (r *Registry) Swap(next Snapshot) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.current
	r.current = next
	return prev
}

// Current returns the installed snapshot.
func (r *Registry) Current() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Resolve looks up a block by key.
func (r *Registry) Resolve(key string) (Block, bool) {
	category, _, ok := SplitKey(r.namespace, key)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.current.Manifest[category][key]
	return b, ok
}

// Source returns the source entry recorded for key.
func (r *Registry) Source(key string) (SourceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.current.SourceMap[key]
	return e, ok
}

// Keys delegates to the installed manifest.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Manifest.Keys()
}

// Categories delegates to the installed manifest.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Manifest.Categories()
}
