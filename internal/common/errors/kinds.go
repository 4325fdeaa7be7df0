package errors

import "errors"

// Kind is the enumerated failure classification reported by a backend
// invocation. Retry decisions are made on the kind, never on error
// message contents.
type Kind string

const (
	// KindTimeout means the attempt exceeded its per-attempt deadline
	KindTimeout Kind = "timeout"
	// KindRateLimited means the backend rejected the call due to throttling
	KindRateLimited Kind = "rate_limited"
	// KindUnavailable means the backend was unreachable or returned a transient 5xx
	KindUnavailable Kind = "unavailable"
	// KindBadRequest means the backend rejected the request as malformed
	KindBadRequest Kind = "bad_request"
	// KindUnauthorized means the backend rejected the configured credentials
	KindUnauthorized Kind = "unauthorized"
	// KindInternal means an unclassified failure inside the invocation path
	KindInternal Kind = "internal"
)

// Retryable reports whether failures of this kind are worth retrying.
// Malformed requests and credential failures will not heal on retry.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimited, KindUnavailable:
		return true
	default:
		return false
	}
}

// GetKind returns the backend failure kind carried by err, or KindInternal
// when err carries none. Wrappers without a kind of their own (such as the
// chain-exhausted error) are unwrapped so the underlying classification
// stays observable.
func GetKind(err error) Kind {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			break
		}
		if appErr.Kind != "" {
			return appErr.Kind
		}
		err = appErr.Cause
	}
	return KindInternal
}

// IsRetryable reports whether err is classified as retryable. Errors without
// an enumerated kind are treated as non-retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return GetKind(err).Retryable()
}
