package circuit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// State represents the current state of a circuit breaker record
type State int

const (
	// StateClosed means the backend is healthy and requests flow through
	StateClosed State = iota
	// StateOpen means the backend is tripped and must not be invoked
	StateOpen
	// StateHalfOpen means the backend is on probation after its cool-down
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ParseState converts a stored state string back into a State
func ParseState(s string) State {
	switch s {
	case "open":
		return StateOpen
	case "half-open":
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Record is the breaker state for one backend key
type Record struct {
	State          State
	FailureCount   int
	SuccessCount   int
	LastTransition time.Time
}

// Store persists circuit records. Update must be atomic per key: concurrent
// updates for the same key are serialized, and fn observes the latest
// committed record. A key referenced for the first time starts as a zeroed
// closed record.
type Store interface {
	Update(ctx context.Context, key string, fn func(Record) Record) (Record, error)
	Get(ctx context.Context, key string) (Record, bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// MemoryStore keeps records in process memory with one mutex per key
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	mu  sync.Mutex
	rec Record
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) entry(key string) *memoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &memoryEntry{}
		s.entries[key] = e
	}
	return e
}

// Update applies fn under the key's mutex
func (s *MemoryStore) Update(_ context.Context, key string, fn func(Record) Record) (Record, error) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rec = fn(e.rec)
	return e.rec, nil
}

// Get returns the current record for key, if one exists
func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return Record{}, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, true, nil
}

// Keys lists every key ever referenced, in stable order
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
