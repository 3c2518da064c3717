package flight

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryStore struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
}

func newMemoryStore(defaultTTL, cleanupInterval time.Duration) Store {
	if defaultTTL <= 0 {
		defaultTTL = defaultStoreTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultMemoryCleanupInterval
	}
	return &memoryStore{
		cache:      gocache.New(defaultTTL, cleanupInterval),
		defaultTTL: defaultTTL,
	}
}

func (s *memoryStore) Driver() Driver {
	return DriverMemory
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	body, ok := item.([]byte)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(body), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.cache.Set(key, cloneBytes(value), ttl)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *memoryStore) Flush(_ context.Context) error {
	s.cache.Flush()
	return nil
}
