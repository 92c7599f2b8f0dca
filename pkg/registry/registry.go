// Package registry provides a thread-safe named registry.
package registry

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrExists is returned by Register for a name already in use.
	ErrExists = errors.New("registry: name already registered")

	// ErrNotFound is returned by Update for an unknown name.
	ErrNotFound = errors.New("registry: name not found")
)

// Entry is a named value.
type Entry[T any] struct {
	Key   string
	Value T
}

// Registry maps names to values of one type. It is safe for concurrent use.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		items: make(map[string]T),
	}
}

// Register stores value under key, failing if key is taken.
func (r *Registry[T]) Register(key string, value T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[key]; ok {
		return errors.Wrapf(ErrExists, "%q", key)
	}
	r.items[key] = value
	return nil
}

// Set stores value under key, replacing any previous value.
func (r *Registry[T]) Set(key string, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key] = value
}

// Get retrieves a value by key.
func (r *Registry[T]) Get(key string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.items[key]
	return value, ok
}

// Update replaces the value under key with fn's result while holding the
// write lock.
func (r *Registry[T]) Update(key string, fn func(T) T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.items[key]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%q", key)
	}
	r.items[key] = fn(value)
	return nil
}

// List returns all entries sorted by key.
func (r *Registry[T]) List() []Entry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry[T], 0, len(r.items))
	for key, value := range r.items {
		entries = append(entries, Entry[T]{Key: key, Value: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Delete removes an entry by key.
func (r *Registry[T]) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, key)
}

// Clear removes all entries.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]T)
}

// Has checks if a key exists.
func (r *Registry[T]) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[key]
	return ok
}

// Len returns the number of entries.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Keys returns all keys, sorted.
func (r *Registry[T]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.items))
	for key := range r.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
