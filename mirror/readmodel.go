package mirror

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/store"
)

// Source is the read API the model caches.
type Source interface {
	Country(id uint64) (inter.Country, error)
	Holdings(user common.Address, id uint64) uint64
	Quota(user common.Address) inter.UserQuota
}

type holdingKey struct {
	user    common.Address
	country uint64
}

// ReadModel is a cache in front of Source. Entries are dropped when a
// receipt touches them and reloaded on the next read.
type ReadModel struct {
	src Source

	countries *store.LRU[uint64, inter.Country]
	holdings  *store.LRU[holdingKey, uint64]
	quotas    *store.LRU[common.Address, inter.UserQuota]

	// gen is bumped by every invalidation; a load that raced one is not
	// cached.
	mu  sync.Mutex
	gen uint64

	hits, misses atomic.Uint64
}

// NewReadModel caches up to size entries per table.
func NewReadModel(src Source, size int) (*ReadModel, error) {
	countries, err := store.NewLRU[uint64, inter.Country](size)
	if err != nil {
		return nil, err
	}
	holdings, err := store.NewLRU[holdingKey, uint64](size)
	if err != nil {
		return nil, err
	}
	quotas, err := store.NewLRU[common.Address, inter.UserQuota](size)
	if err != nil {
		return nil, err
	}
	return &ReadModel{src: src, countries: countries, holdings: holdings, quotas: quotas}, nil
}

func cached[K comparable, V any](m *ReadModel, s *store.LRU[K, V], k K, load func() (V, error)) (V, error) {
	if v, ok := s.Get(k); ok {
		m.hits.Add(1)
		return v, nil
	}
	m.misses.Add(1)

	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	v, err := load()
	if err != nil {
		return v, err
	}

	m.mu.Lock()
	if gen == m.gen {
		s.Set(k, v)
	}
	m.mu.Unlock()
	return v, nil
}

// Country returns the country view. Unknown countries are not cached.
func (m *ReadModel) Country(id uint64) (inter.Country, error) {
	return cached(m, m.countries, id, func() (inter.Country, error) {
		return m.src.Country(id)
	})
}

// Holdings returns the tokens of country id held by user.
func (m *ReadModel) Holdings(user common.Address, id uint64) uint64 {
	v, _ := cached(m, m.holdings, holdingKey{user, id}, func() (uint64, error) {
		return m.src.Holdings(user, id), nil
	})
	return v
}

// Quota returns the free-attack quota of user.
func (m *ReadModel) Quota(user common.Address) inter.UserQuota {
	v, _ := cached(m, m.quotas, user, func() (inter.UserQuota, error) {
		return m.src.Quota(user), nil
	})
	return v
}

// Invalidate drops every entry r changed.
func (m *ReadModel) Invalidate(r *inter.Receipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	for _, id := range r.Countries() {
		m.countries.Del(id)
		m.holdings.Del(holdingKey{r.User, id})
	}
	m.quotas.Del(r.User)
}

// Purge drops every entry.
func (m *ReadModel) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.countries.Purge()
	m.holdings.Purge()
	m.quotas.Purge()
}

// Stats returns the cache hit and miss counters.
func (m *ReadModel) Stats() (hits, misses uint64) {
	return m.hits.Load(), m.misses.Load()
}

// Warm loads the given countries with at most parallel loads in flight.
func (m *ReadModel) Warm(ctx context.Context, ids []uint64, parallel int) error {
	if parallel < 1 {
		parallel = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(parallel))

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			if _, err := m.Country(id); err != nil {
				return fmt.Errorf("warm country %d: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}
