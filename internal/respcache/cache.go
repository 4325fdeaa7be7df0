// Package respcache caches the highest-quality answer for identical future
// requests. Cache keys are fingerprints of a canonicalized request; values
// are the primary tier's payload. The backing store is an external
// collaborator whose failures always degrade to a miss or a dropped write,
// never to a failed request.
package respcache

import (
	"context"
	"encoding/json"
	"time"

	"model-router/internal/common/logging"
)

// Entry is the stored form of one cached response
type Entry struct {
	Fingerprint string          `json:"fingerprint"`
	Payload     json.RawMessage `json:"payload"`
	TierKey     string          `json:"tier_key"`
	CachedAt    time.Time       `json:"cached_at"`
}

// Metadata accompanies a cache write
type Metadata struct {
	TierKey  string
	CachedAt time.Time
}

// Store is the external cache collaborator. It must be safe for concurrent
// use. Expiry is the store's own policy; the router never enforces a TTL.
type Store interface {
	Get(ctx context.Context, fingerprint string) (Entry, bool, error)
	Set(ctx context.Context, entry Entry) error
}

// Cache is a thin façade over a Store that downgrades every collaborator
// failure
type Cache struct {
	store  Store
	logger logging.Logger
}

// New creates a cache over the given store
func New(store Store, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Cache{
		store:  store,
		logger: logger.WithFields(logging.Field{Key: "component", Value: "response_cache"}),
	}
}

// Get looks up the payload for fingerprint. Store failures are logged and
// reported as a miss.
func (c *Cache) Get(ctx context.Context, fingerprint string) (json.RawMessage, bool) {
	entry, ok := c.Lookup(ctx, fingerprint)
	if !ok {
		return nil, false
	}
	return entry.Payload, true
}

// Lookup is Get with the full entry, for callers that need the source tier
func (c *Cache) Lookup(ctx context.Context, fingerprint string) (Entry, bool) {
	entry, ok, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		c.logger.Warn("Cache lookup failed, treating as miss",
			logging.Field{Key: "fingerprint", Value: fingerprint},
			logging.Field{Key: "error", Value: err.Error()},
		)
		return Entry{}, false
	}
	return entry, ok
}

// Put stores payload under fingerprint. Store failures are logged and the
// write is dropped.
func (c *Cache) Put(ctx context.Context, fingerprint string, payload json.RawMessage, meta Metadata) {
	cachedAt := meta.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}

	err := c.store.Set(ctx, Entry{
		Fingerprint: fingerprint,
		Payload:     payload,
		TierKey:     meta.TierKey,
		CachedAt:    cachedAt,
	})
	if err != nil {
		c.logger.Warn("Cache write failed, dropping entry",
			logging.Field{Key: "fingerprint", Value: fingerprint},
			logging.Field{Key: "tier", Value: meta.TierKey},
			logging.Field{Key: "error", Value: err.Error()},
		)
	}
}
