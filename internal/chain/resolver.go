package chain

import (
	"fmt"
	"sort"

	"model-router/internal/common/errors"
)

// Resolver maps a use case to its immutable fallback chain
type Resolver struct {
	chains map[string]Chain
}

// NewResolver builds a resolver from parsed routes. Chains are converted to
// their runtime form once here; Resolve is read-only afterwards.
func NewResolver(routes *Routes) *Resolver {
	chains := make(map[string]Chain, len(routes.Chains))
	for useCase, cc := range routes.Chains {
		chains[useCase] = build(useCase, cc)
	}
	return &Resolver{chains: chains}
}

// Resolve returns the fallback chain for useCase
func (r *Resolver) Resolve(useCase string) (Chain, error) {
	c, ok := r.chains[useCase]
	if !ok {
		return Chain{}, errors.ConfigError(fmt.Sprintf("no fallback chain configured for use case %q", useCase))
	}
	return c, nil
}

// UseCases lists the configured use cases in stable order
func (r *Resolver) UseCases() []string {
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
