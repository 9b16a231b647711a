package profile

import (
	"context"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// CachedStore puts a read-through TTL cache in front of another Store.
// Writes go to the inner store first and refresh the cached entry only on
// success. Cached values are cloned on the way in and out, so callers never
// share maps or slices with the cache.
type CachedStore struct {
	inner Store
	cache *cache.Cache
}

// NewCachedStore wraps inner with a cache of the given TTL. A non-positive
// ttl defaults to 60 seconds.
func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &CachedStore{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (s *CachedStore) Fetch(ctx context.Context, hostID string) (Profile, error) {
	if v, ok := s.cache.Get(hostID); ok {
		return v.(Profile).Clone(), nil
	}

	p, err := s.inner.Fetch(ctx, hostID)
	if err != nil {
		return Profile{}, err
	}
	s.cache.SetDefault(hostID, p.Clone())
	return p, nil
}

func (s *CachedStore) Write(ctx context.Context, hostID string, p Profile) error {
	if err := s.inner.Write(ctx, hostID, p); err != nil {
		s.cache.Delete(hostID)
		return err
	}
	s.cache.SetDefault(hostID, p.Clone())
	return nil
}
