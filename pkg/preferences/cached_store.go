package preferences

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/cache"
)

type cached struct {
	prefs Preferences
	found bool
}

// CachedStore serves profiles from a bounded TTL cache in front of another
// Store. Missing profiles are cached too; lookup errors never are.
type CachedStore struct {
	next  Store
	cache *cache.LRU[string, cached]
}

// NewCachedStore wraps next with a cache of the given capacity and ttl.
func NewCachedStore(next Store, capacity int, ttl time.Duration, opts ...cache.Option) *CachedStore {
	return &CachedStore{
		next:  next,
		cache: cache.New[string, cached](capacity, ttl, opts...),
	}
}

func (s *CachedStore) Get(ctx context.Context, userID string) (Preferences, error) {
	if c, ok := s.cache.Get(userID); ok {
		if !c.found {
			return Preferences{}, ErrNotFound
		}
		return c.prefs.Clone(), nil
	}

	p, err := s.next.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		s.cache.Put(userID, cached{})
		return Preferences{}, err
	case err != nil:
		return Preferences{}, err
	}

	s.cache.Put(userID, cached{prefs: p.Clone(), found: true})
	return p, nil
}

// Invalidate drops the cached profile of userID.
func (s *CachedStore) Invalidate(userID string) {
	s.cache.Remove(userID)
}
