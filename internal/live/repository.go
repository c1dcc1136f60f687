package live

import "sync"

// Repository hands out one value per key, creating it on first use.
type Repository[K comparable, V any] struct {
	mu       sync.Mutex
	values   map[K]V
	newValue func(K) V
}

// NewRepository creates a repository that builds missing values with newValue.
func NewRepository[K comparable, V any](newValue func(K) V) *Repository[K, V] {
	return &Repository[K, V]{
		values:   make(map[K]V),
		newValue: newValue,
	}
}

// Get returns the value for key, creating it if absent.
func (r *Repository[K, V]) Get(key K) V {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.values[key]; ok {
		return v
	}
	v := r.newValue(key)
	r.values[key] = v
	return v
}

// Peek returns the value for key without creating it.
func (r *Repository[K, V]) Peek(key K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys currently held, in no particular order.
func (r *Repository[K, V]) Keys() []K {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]K, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of values held.
func (r *Repository[K, V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Prune drops every value for which drop returns true and reports how many
// were dropped. A later Get for a dropped key builds a fresh value.
func (r *Repository[K, V]) Prune(drop func(K, V) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k, v := range r.values {
		if drop(k, v) {
			delete(r.values, k)
			n++
		}
	}
	return n
}
