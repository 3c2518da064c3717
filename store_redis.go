package flight

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var errRedisUnavailable = errors.New("flight: redis client unavailable")

const (
	// redisScanCount is the COUNT hint for each SCAN page during Flush.
	redisScanCount = 200
	// redisUnlinkBatch bounds the keys sent in one UNLINK.
	redisUnlinkBatch = 500
)

// RedisClient captures the subset of redis.Client used by the store.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Unlink(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// redisStore keeps each remembered value under "<prefix>:<key>" so several
// loaders can share one server and flush only their own keys.
type redisStore struct {
	client     RedisClient
	defaultTTL time.Duration
	scope      string
}

func newRedisStore(client RedisClient, defaultTTL time.Duration, prefix string) Store {
	if defaultTTL <= 0 {
		defaultTTL = defaultStoreTTL
	}
	if prefix == "" {
		prefix = defaultStorePrefix
	}
	return &redisStore{client: client, defaultTTL: defaultTTL, scope: prefix + ":"}
}

func (s *redisStore) Driver() Driver { return DriverRedis }

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, errRedisUnavailable
	}
	body, err := s.client.Get(ctx, s.storeKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return body, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, s.storeKey(key), value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	return s.client.Del(ctx, s.storeKey(key)).Err()
}

// Flush walks the scope with SCAN and reclaims matches with UNLINK, so a
// large scope is freed off the server's main thread.
func (s *redisStore) Flush(ctx context.Context) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	var (
		cursor  uint64
		pending []string
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.scope+"*", redisScanCount).Result()
		if err != nil {
			return err
		}
		pending = append(pending, keys...)
		if len(pending) >= redisUnlinkBatch || next == 0 {
			if err := s.unlink(ctx, pending); err != nil {
				return err
			}
			pending = pending[:0]
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *redisStore) unlink(ctx context.Context, keys []string) error {
	for len(keys) > 0 {
		n := min(len(keys), redisUnlinkBatch)
		if err := s.client.Unlink(ctx, keys[:n]...).Err(); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return nil
}

func (s *redisStore) storeKey(key string) string {
	return s.scope + key
}
