package store

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// LRU is a size-bounded Store that evicts the least recently used entry.
// It is meant for projections and caches that can always be rebuilt from the
// engine, never for authoritative state.
type LRU[K comparable, V any] struct {
	cache *lru.Cache
}

// NewLRU returns an LRU store holding at most size entries.
func NewLRU[K comparable, V any](size int) (*LRU[K, V], error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru store: %w", err)
	}
	return &LRU[K, V]{cache: cache}, nil
}

func (s *LRU[K, V]) Get(k K) (V, bool) {
	raw, ok := s.cache.Get(k)
	if !ok {
		var zero V
		return zero, false
	}
	return raw.(V), true
}

func (s *LRU[K, V]) Set(k K, v V) {
	s.cache.Add(k, v)
}

func (s *LRU[K, V]) Del(k K) {
	s.cache.Remove(k)
}

// Range walks the entries from oldest to newest without touching recency.
func (s *LRU[K, V]) Range(fn func(k K, v V) bool) {
	for _, raw := range s.cache.Keys() {
		v, ok := s.cache.Peek(raw)
		if !ok {
			continue
		}
		if !fn(raw.(K), v.(V)) {
			return
		}
	}
}

func (s *LRU[K, V]) Len() int {
	return s.cache.Len()
}

// Purge drops every entry.
func (s *LRU[K, V]) Purge() {
	s.cache.Purge()
}
