package chain

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"model-router/internal/common/errors"
)

// DefaultFallbackMessage is the degraded payload text used when a chain
// does not configure its own.
const DefaultFallbackMessage = "The service is temporarily degraded. A generic response has been returned."

// BackendConfig describes how to reach one remote backend
type BackendConfig struct {
	URL string `json:"url"`
	// AuthToken is the bearer credential for the backend. Values with the
	// "enc:" prefix are decrypted at startup.
	AuthToken string `json:"auth_token,omitempty"`
	Model     string `json:"model,omitempty"`
}

// TierConfig is one entry of a chain in the routes file. Exactly one of
// Backend or CachedFallback must be set.
type TierConfig struct {
	Backend        string `json:"backend,omitempty"`
	CachedFallback bool   `json:"cached_fallback,omitempty"`
	MaxRetries     int    `json:"max_retries,omitempty"`
	TimeoutMs      int    `json:"timeout_ms,omitempty"`
	Level          *int   `json:"level,omitempty"`
}

// ChainConfig is the routes-file form of one fallback chain
type ChainConfig struct {
	Tiers           []TierConfig `json:"tiers"`
	AbortOnFatal    *bool        `json:"abort_on_fatal,omitempty"`
	FallbackMessage string       `json:"fallback_message,omitempty"`
}

// Routes is the parsed routes file: the backend registry plus the fallback
// chain per use case. It is loaded once at startup and never mutated.
type Routes struct {
	Backends map[string]BackendConfig `json:"backends"`
	Chains   map[string]ChainConfig   `json:"chains"`
}

const (
	defaultMaxRetries = 3
	defaultTimeoutMs  = 10000
)

// LoadRoutes reads and validates the routes file at path
func LoadRoutes(path string) (*Routes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to read routes file %s: %v", path, err))
	}
	return ParseRoutes(data)
}

// ParseRoutes parses and validates routes file contents
func ParseRoutes(data []byte) (*Routes, error) {
	var routes Routes
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid routes file: %v", err))
	}

	if len(routes.Chains) == 0 {
		return nil, errors.ConfigError("routes file defines no chains")
	}

	for name, cfg := range routes.Backends {
		if cfg.URL == "" {
			return nil, errors.ConfigError(fmt.Sprintf("backend %q has no url", name))
		}
	}

	for useCase, cc := range routes.Chains {
		if err := validateChain(useCase, cc, routes.Backends); err != nil {
			return nil, err
		}
	}

	return &routes, nil
}

func validateChain(useCase string, cc ChainConfig, backends map[string]BackendConfig) error {
	if len(cc.Tiers) == 0 {
		return errors.ConfigError(fmt.Sprintf("chain %q has no tiers", useCase))
	}

	seenFallback := false
	for i, tc := range cc.Tiers {
		switch {
		case tc.CachedFallback && tc.Backend != "":
			return errors.ConfigError(fmt.Sprintf("chain %q tier %d sets both backend and cached_fallback", useCase, i))
		case tc.CachedFallback:
			if seenFallback {
				return errors.ConfigError(fmt.Sprintf("chain %q has more than one cached_fallback tier", useCase))
			}
			if i != len(cc.Tiers)-1 {
				return errors.ConfigError(fmt.Sprintf("chain %q cached_fallback tier must be last", useCase))
			}
			seenFallback = true
		case tc.Backend != "":
			if _, ok := backends[tc.Backend]; !ok {
				return errors.ConfigError(fmt.Sprintf("chain %q references unknown backend %q", useCase, tc.Backend))
			}
			if tc.MaxRetries < 0 {
				return errors.ConfigError(fmt.Sprintf("chain %q tier %d has negative max_retries", useCase, i))
			}
			if tc.TimeoutMs < 0 {
				return errors.ConfigError(fmt.Sprintf("chain %q tier %d has negative timeout_ms", useCase, i))
			}
		default:
			return errors.ConfigError(fmt.Sprintf("chain %q tier %d sets neither backend nor cached_fallback", useCase, i))
		}
	}

	levels := map[int]bool{}
	for i, tc := range cc.Tiers {
		if tc.Level == nil || tc.CachedFallback {
			continue
		}
		if levels[*tc.Level] {
			return errors.ConfigError(fmt.Sprintf("chain %q tier %d duplicates level %d", useCase, i, *tc.Level))
		}
		levels[*tc.Level] = true
	}

	return nil
}

// build converts a validated ChainConfig into its immutable runtime form.
// Backend tiers are ordered by ascending level; a tier without an explicit
// level takes its position in the list.
func build(useCase string, cc ChainConfig) Chain {
	type leveled struct {
		level int
		tc    TierConfig
	}

	backendTiers := make([]leveled, 0, len(cc.Tiers))
	hasFallback := false
	for i, tc := range cc.Tiers {
		if tc.CachedFallback {
			hasFallback = true
			continue
		}
		level := i
		if tc.Level != nil {
			level = *tc.Level
		}
		backendTiers = append(backendTiers, leveled{level: level, tc: tc})
	}

	sort.Slice(backendTiers, func(i, j int) bool {
		return backendTiers[i].level < backendTiers[j].level
	})

	tiers := make([]Tier, 0, len(cc.Tiers))
	for rank, lt := range backendTiers {
		maxRetries := lt.tc.MaxRetries
		if maxRetries == 0 {
			maxRetries = defaultMaxRetries
		}
		timeoutMs := lt.tc.TimeoutMs
		if timeoutMs == 0 {
			timeoutMs = defaultTimeoutMs
		}
		tiers = append(tiers, BackendTier{
			Key:   lt.tc.Backend,
			Level: rank,
			Retry: RetryPolicy{
				MaxRetries: maxRetries,
				Timeout:    time.Duration(timeoutMs) * time.Millisecond,
			},
		})
	}
	if hasFallback {
		tiers = append(tiers, CachedFallbackTier{})
	}

	abortOnFatal := true
	if cc.AbortOnFatal != nil {
		abortOnFatal = *cc.AbortOnFatal
	}

	message := cc.FallbackMessage
	if message == "" {
		message = DefaultFallbackMessage
	}

	return Chain{
		UseCase:         useCase,
		Tiers:           tiers,
		AbortOnFatal:    abortOnFatal,
		FallbackMessage: message,
	}
}
