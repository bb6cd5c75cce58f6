// Package store defines the key-value abstraction every piece of engine and
// mirror state is kept in. Injecting stores instead of process-wide maps keeps
// tests isolated and lets a deployment swap the backing implementation.
package store

import "sync"

// Store is a concurrency-safe key-value store.
type Store[K comparable, V any] interface {
	// Get returns the value for k and whether it was present.
	Get(k K) (V, bool)
	// Set stores v under k.
	Set(k K, v V)
	// Del removes k. Deleting a missing key is a no-op.
	Del(k K)
	// Range calls fn for every entry until fn returns false. The iteration
	// order is unspecified.
	Range(fn func(k K, v V) bool)
	// Len returns the number of entries.
	Len() int
}

// Memory is an unbounded map-backed Store.
type Memory[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewMemory returns an empty in-memory store.
func NewMemory[K comparable, V any]() *Memory[K, V] {
	return &Memory[K, V]{m: make(map[K]V)}
}

func (s *Memory[K, V]) Get(k K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[k]
	return v, ok
}

func (s *Memory[K, V]) Set(k K, v V) {
	s.mu.Lock()
	s.m[k] = v
	s.mu.Unlock()
}

func (s *Memory[K, V]) Del(k K) {
	s.mu.Lock()
	delete(s.m, k)
	s.mu.Unlock()
}

// Range iterates over a copy of the entries, so fn may call back into the
// store.
func (s *Memory[K, V]) Range(fn func(k K, v V) bool) {
	s.mu.RLock()
	entries := make([]entry[K, V], 0, len(s.m))
	for k, v := range s.m {
		entries = append(entries, entry[K, V]{k, v})
	}
	s.mu.RUnlock()

	for _, e := range entries {
		if !fn(e.k, e.v) {
			return
		}
	}
}

func (s *Memory[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

type entry[K comparable, V any] struct {
	k K
	v V
}
