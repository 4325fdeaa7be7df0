package respcache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-router/internal/common/errors"
	"model-router/internal/common/logging"
)

func TestFingerprint_FieldOrderIndependent(t *testing.T) {
	a := json.RawMessage(`{"model": "gpt-4", "prompt": "summarize", "temperature": 0.2}`)
	b := json.RawMessage(`{"temperature": 0.2, "prompt": "summarize", "model": "gpt-4"}`)

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)

	assert.Equal(t, fpA, fpB)
	assert.Len(t, fpA, 64)
}

func TestFingerprint_NestedFieldOrder(t *testing.T) {
	a := json.RawMessage(`{"input": {"patient": {"age": 61, "name": "x"}, "notes": ["a", "b"]}}`)
	b := json.RawMessage(`{"input": {"notes": ["a", "b"], "patient": {"name": "x", "age": 61}}}`)

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)

	assert.Equal(t, fpA, fpB)
}

func TestFingerprint_DifferentRequestsDiffer(t *testing.T) {
	a := json.RawMessage(`{"prompt": "summarize"}`)
	b := json.RawMessage(`{"prompt": "translate"}`)

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)

	assert.NotEqual(t, fpA, fpB)
}

func TestFingerprint_ArrayOrderMatters(t *testing.T) {
	a := json.RawMessage(`{"notes": ["a", "b"]}`)
	b := json.RawMessage(`{"notes": ["b", "a"]}`)

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)

	assert.NotEqual(t, fpA, fpB)
}

func TestFingerprint_InvalidJSON(t *testing.T) {
	_, err := Fingerprint(json.RawMessage(`{`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestLocalStore_RoundTrip(t *testing.T) {
	cache := New(NewLocalStore(), logging.NewNopLogger())
	ctx := context.Background()

	_, ok := cache.Get(ctx, "fp-1")
	assert.False(t, ok)

	payload := json.RawMessage(`{"summary": "stable"}`)
	cache.Put(ctx, "fp-1", payload, Metadata{TierKey: "gpt4-primary"})

	got, ok := cache.Get(ctx, "fp-1")
	require.True(t, ok)
	assert.JSONEq(t, string(payload), string(got))
}

func TestLocalStore_Overwrite(t *testing.T) {
	cache := New(NewLocalStore(), logging.NewNopLogger())
	ctx := context.Background()

	cache.Put(ctx, "fp-1", json.RawMessage(`{"v": 1}`), Metadata{TierKey: "gpt4-primary"})
	cache.Put(ctx, "fp-1", json.RawMessage(`{"v": 2}`), Metadata{TierKey: "gpt4-primary"})

	got, ok := cache.Get(ctx, "fp-1")
	require.True(t, ok)
	assert.JSONEq(t, `{"v": 2}`, string(got))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, errors.ConnectionError("store unreachable", nil)
}

func (failingStore) Set(context.Context, Entry) error {
	return errors.ConnectionError("store unreachable", nil)
}

func TestCache_StoreFailuresDegrade(t *testing.T) {
	cache := New(failingStore{}, logging.NewNopLogger())
	ctx := context.Background()

	// lookup failure is a miss, write failure is a no-op; neither panics
	// or propagates
	_, ok := cache.Get(ctx, "fp-1")
	assert.False(t, ok)

	cache.Put(ctx, "fp-1", json.RawMessage(`{}`), Metadata{TierKey: "gpt4-primary"})
}

func setupRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(NewRedisStore(client), logging.NewNopLogger()), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	cache, _ := setupRedisCache(t)
	ctx := context.Background()

	payload := json.RawMessage(`{"summary": "stable", "confidence": 0.92}`)
	cache.Put(ctx, "fp-abc", payload, Metadata{TierKey: "gpt4-primary", CachedAt: time.Now()})

	got, ok := cache.Get(ctx, "fp-abc")
	require.True(t, ok)
	assert.JSONEq(t, string(payload), string(got))

	_, ok = cache.Get(ctx, "fp-other")
	assert.False(t, ok)
}

func TestRedisStore_DownedServerDegradesToMiss(t *testing.T) {
	cache, mr := setupRedisCache(t)
	ctx := context.Background()

	cache.Put(ctx, "fp-abc", json.RawMessage(`{}`), Metadata{TierKey: "gpt4-primary"})
	mr.Close()

	_, ok := cache.Get(ctx, "fp-abc")
	assert.False(t, ok)

	// writes against the downed server are dropped silently
	cache.Put(ctx, "fp-def", json.RawMessage(`{}`), Metadata{TierKey: "gpt4-primary"})
}
