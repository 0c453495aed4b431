// Package cache holds the most recent snapshot of a collection. Snapshot is
// the in-process copy that views are recomputed from; Store persists the last
// snapshot per owner in a bbolt file so the next run can render before the
// first live snapshot arrives.
package cache

import (
	"sync"
)

// Snapshot is a full collection held in memory. It is replaced wholesale on
// every update and never merged.
type Snapshot[T any] struct {
	mu    sync.RWMutex
	items []T
}

// New creates an empty snapshot cache.
func New[T any]() *Snapshot[T] {
	return &Snapshot[T]{items: []T{}}
}

// Replace swaps in a new full snapshot.
func (c *Snapshot[T]) Replace(items []T) {
	cp := make([]T, len(items))
	copy(cp, items)

	c.mu.Lock()
	c.items = cp
	c.mu.Unlock()
}

// Items returns a copy of the cached snapshot.
func (c *Snapshot[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make([]T, len(c.items))
	copy(cp, c.items)
	return cp
}

// Len returns the number of cached items.
func (c *Snapshot[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear empties the cache, as when the owning session ends.
func (c *Snapshot[T]) Clear() {
	c.mu.Lock()
	c.items = []T{}
	c.mu.Unlock()
}
