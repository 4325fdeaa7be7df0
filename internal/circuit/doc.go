// Package circuit implements the per-backend circuit breaker registry that
// protects the router from persistently failing backends.
//
// Each backend key owns one record with a state machine over CLOSED, OPEN
// and HALF_OPEN. Records are created lazily on first reference and never
// deleted. The registry is backed by a pluggable Store so breaker state can
// live in process memory or in a shared Redis keyspace when several router
// processes must observe the same breakers.
package circuit
