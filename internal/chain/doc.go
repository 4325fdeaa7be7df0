// Package chain defines fallback chains: the ordered list of backend tiers
// attempted for a use case until one succeeds or the chain aborts. Chains
// and the backend registry are loaded from a JSON routes file once at
// startup and are immutable thereafter.
package chain
