package chain

import "time"

// RetryPolicy bounds the attempts made against a single backend tier
type RetryPolicy struct {
	// MaxRetries is the total number of attempts for one tier cycle
	MaxRetries int
	// Timeout bounds each individual attempt
	Timeout time.Duration
}

// Tier is one candidate in a fallback chain. It is either a BackendTier or
// the CachedFallbackTier sentinel; callers switch on the concrete type
// instead of comparing magic key strings.
type Tier interface {
	isTier()
}

// BackendTier is a remote backend candidate, ranked by Level (0 = primary)
type BackendTier struct {
	Key   string
	Level int
	Retry RetryPolicy
}

func (BackendTier) isTier() {}

// CachedFallbackTier is the distinguished last-resort tier. Reaching it
// short-circuits to a generic degraded response without any backend call
// or circuit interaction.
type CachedFallbackTier struct{}

func (CachedFallbackTier) isTier() {}

// Chain is the ordered tier list for one use case, sorted by ascending
// level. It is immutable after loading.
type Chain struct {
	UseCase string
	Tiers   []Tier

	// AbortOnFatal stops the whole chain on a non-retryable failure instead
	// of advancing to the next tier. Defaults to true.
	AbortOnFatal bool

	// FallbackMessage is returned as the degraded payload when the
	// CachedFallbackTier is reached.
	FallbackMessage string
}

// Primary returns the level-0 backend tier, if the chain has one
func (c Chain) Primary() (BackendTier, bool) {
	for _, tier := range c.Tiers {
		if bt, ok := tier.(BackendTier); ok {
			return bt, bt.Level == 0
		}
	}
	return BackendTier{}, false
}
