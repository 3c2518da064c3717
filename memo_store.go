package flight

import (
	"context"
	"time"
)

type memoEntry struct {
	body []byte
	ok   bool
}

// NewMemoStore decorates store with per-process read memoization. Each key's
// first read goes to the backend once, however many goroutines ask for it at
// the same time; later reads are served from memory until the key is written,
// deleted, or flushed through the memo store. Backend errors are not memoized.
// @group Memoization
//
// Example: memoize a backing store
//
//	ctx := context.Background()
//	base := flight.NewStore(ctx, flight.StoreConfig{Driver: flight.DriverMemory})
//	l := flight.NewLoader(flight.NewMemoStore(base))
//	_ = l
func NewMemoStore(store Store) Store {
	return &memoStore{
		store: store,
		reads: NewGroup[string, memoEntry](),
	}
}

type memoStore struct {
	store Store
	reads *Group[string, memoEntry]
}

func (s *memoStore) Driver() Driver {
	return s.store.Driver()
}

func (s *memoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.reads.Do(ctx, key, func() Producer[memoEntry] {
		return func(ctx context.Context) (memoEntry, error) {
			body, ok, err := s.store.Get(ctx, key)
			if err != nil {
				return memoEntry{}, err
			}
			return memoEntry{body: cloneBytes(body), ok: ok}, nil
		}
	})
	if err != nil {
		return nil, false, err
	}
	return cloneBytes(entry.body), entry.ok, nil
}

func (s *memoStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.store.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	s.reads.Forget(key)
	return nil
}

func (s *memoStore) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	s.reads.Forget(key)
	return nil
}

func (s *memoStore) Flush(ctx context.Context) error {
	if err := s.store.Flush(ctx); err != nil {
		return err
	}
	s.reads.Flush()
	return nil
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	clone := make([]byte, len(value))
	copy(clone, value)
	return clone
}
