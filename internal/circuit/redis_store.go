package circuit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"model-router/internal/common/errors"
)

const redisKeyPrefix = "circuit:"

// maxTxRetries bounds optimistic-update retries when another process
// commits the same key first
const maxTxRetries = 5

// RedisStore keeps circuit records in a shared Redis keyspace so every
// router process observes the same breaker state. Updates use WATCH-based
// optimistic transactions; a concurrent commit on the same key retries the
// whole read-modify-write cycle.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store backed by the given Redis client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Update applies fn via an optimistic WATCH transaction on the key
func (s *RedisStore) Update(ctx context.Context, key string, fn func(Record) Record) (Record, error) {
	redisKey := redisKeyPrefix + key

	var updated Record
	txn := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, redisKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}

		updated = fn(recordFromHash(vals))

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey, recordToHash(updated))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, redisKey)
		if err == nil {
			return updated, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return Record{}, errors.ConnectionError("circuit store update failed", err).WithContext("backend", key)
	}

	return Record{}, errors.ConnectionError("circuit store update contention exhausted", redis.TxFailedErr).WithContext("backend", key)
}

// Get reads the record for key without modifying it
func (s *RedisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	vals, err := s.client.HGetAll(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return Record{}, false, errors.ConnectionError("circuit store read failed", err).WithContext("backend", key)
	}
	if len(vals) == 0 {
		return Record{}, false, nil
	}
	return recordFromHash(vals), true, nil
}

// Keys scans the circuit keyspace and returns backend keys
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, errors.ConnectionError("circuit store scan failed", err)
	}
	return keys, nil
}

func recordFromHash(vals map[string]string) Record {
	if len(vals) == 0 {
		return Record{}
	}

	failures, _ := strconv.Atoi(vals["failures"])
	successes, _ := strconv.Atoi(vals["successes"])
	lastMs, _ := strconv.ParseInt(vals["last_transition_ms"], 10, 64)

	rec := Record{
		State:        ParseState(vals["state"]),
		FailureCount: failures,
		SuccessCount: successes,
	}
	if lastMs > 0 {
		rec.LastTransition = time.UnixMilli(lastMs)
	}
	return rec
}

func recordToHash(rec Record) map[string]interface{} {
	var lastMs int64
	if !rec.LastTransition.IsZero() {
		lastMs = rec.LastTransition.UnixMilli()
	}
	return map[string]interface{}{
		"state":              rec.State.String(),
		"failures":           strconv.Itoa(rec.FailureCount),
		"successes":          strconv.Itoa(rec.SuccessCount),
		"last_transition_ms": strconv.FormatInt(lastMs, 10),
	}
}
