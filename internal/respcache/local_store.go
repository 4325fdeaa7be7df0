package respcache

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// LocalStore keeps cache entries in process memory, for single-process
// deployments and tests
type LocalStore struct {
	cache *gocache.Cache
}

// NewLocalStore creates an in-process store. Entries never expire unless
// the process restarts.
func NewLocalStore() *LocalStore {
	return &LocalStore{cache: gocache.New(gocache.NoExpiration, 0)}
}

// Get fetches the entry for fingerprint
func (s *LocalStore) Get(_ context.Context, fingerprint string) (Entry, bool, error) {
	v, ok := s.cache.Get(fingerprint)
	if !ok {
		return Entry{}, false, nil
	}
	return v.(Entry), true, nil
}

// Set writes the entry, overwriting any previous value for the fingerprint
func (s *LocalStore) Set(_ context.Context, entry Entry) error {
	s.cache.Set(entry.Fingerprint, entry, gocache.NoExpiration)
	return nil
}
