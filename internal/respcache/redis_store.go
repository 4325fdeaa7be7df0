package respcache

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"model-router/internal/common/errors"
)

const redisKeyPrefix = "respcache:"

// RedisStore keeps cache entries in Redis. Entries are written without a
// TTL; eviction is left to the Redis deployment's own policy.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store backed by the given Redis client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get fetches the entry for fingerprint
func (s *RedisStore) Get(ctx context.Context, fingerprint string) (Entry, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+fingerprint).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.ConnectionError("cache store read failed", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, errors.InternalError("cache entry is corrupt", err)
	}
	return entry, true, nil
}

// Set writes the entry, overwriting any previous value for the fingerprint
func (s *RedisStore) Set(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.InternalError("failed to encode cache entry", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+entry.Fingerprint, data, 0).Err(); err != nil {
		return errors.ConnectionError("cache store write failed", err)
	}
	return nil
}
