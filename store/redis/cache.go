package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/weftlabs/weft/cache"
	"github.com/weftlabs/weft/codec"
)

// Lookup retrieves a cached step result. Expiry is handled natively by
// Redis TTLs, so a present key is always live.
func (s *Store) Lookup(ctx context.Context, key string) (*cache.Entry, bool, error) {
	data, err := s.client.Get(ctx, cacheKey(key)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("weft/redis: cache lookup: %w", err)
	}

	var entry cache.Entry
	if err := (codec.JSON{}).Unmarshal([]byte(data), &entry); err != nil {
		return nil, false, fmt.Errorf("weft/redis: decode cache entry: %w", err)
	}
	return &entry, true, nil
}

// Put stores a cache entry, delegating TTL enforcement to Redis. A zero
// TTL stores the entry without expiry.
func (s *Store) Put(ctx context.Context, entry *cache.Entry) error {
	data, err := codec.JSON{}.Marshal(entry)
	if err != nil {
		return fmt.Errorf("weft/redis: encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, cacheKey(entry.Key), data, entry.TTL).Err(); err != nil {
		return fmt.Errorf("weft/redis: cache put: %w", err)
	}
	return nil
}

// Delete removes a cache entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("weft/redis: cache delete: %w", err)
	}
	return nil
}

// Sweep is a no-op for Redis: expired entries are reclaimed by native
// key TTLs.
func (s *Store) Sweep(_ context.Context) (int, error) { return 0, nil }
