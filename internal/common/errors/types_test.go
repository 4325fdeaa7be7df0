package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	cause := errors.New("connection refused")
	err := BackendError("call failed", KindUnavailable, cause).WithContext("backend", "gpt4-primary")

	msg := err.Error()
	assert.Contains(t, msg, "backend: call failed")
	assert.Contains(t, msg, "kind=unavailable")
	assert.Contains(t, msg, "cause=connection refused")
	assert.Contains(t, msg, "backend=gpt4-primary")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := ExhaustedError("all tiers failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsType_Wrapped(t *testing.T) {
	inner := ConfigError("unknown use case")
	wrapped := fmt.Errorf("resolving chain: %w", inner)

	assert.True(t, IsType(wrapped, ErrTypeConfig))
	assert.False(t, IsType(wrapped, ErrTypeBackend))
	assert.False(t, IsType(nil, ErrTypeConfig))
	assert.False(t, IsType(errors.New("plain"), ErrTypeConfig))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeExhausted, GetType(ExhaustedError("done", nil)))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}

func TestKind_Retryable(t *testing.T) {
	tests := []struct {
		kind      Kind
		retryable bool
	}{
		{KindTimeout, true},
		{KindRateLimited, true},
		{KindUnavailable, true},
		{KindBadRequest, false},
		{KindUnauthorized, false},
		{KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.kind.Retryable())
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(BackendError("throttled", KindRateLimited, nil)))
	assert.False(t, IsRetryable(BackendError("bad payload", KindBadRequest, nil)))

	// errors without an enumerated kind never retry
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(ConfigError("missing chain")))

	// classification survives wrapping
	wrapped := fmt.Errorf("tier gpt4: %w", BackendError("gateway", KindUnavailable, nil))
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, KindUnavailable, GetKind(wrapped))
}

func TestGetKind_UnwrapsKindlessWrappers(t *testing.T) {
	inner := BackendError("rejected", KindBadRequest, nil)
	exhausted := ExhaustedError("chain aborted", inner)

	// the terminal wrapper carries no kind of its own; the underlying
	// classification must stay observable through it
	assert.Equal(t, KindBadRequest, GetKind(exhausted))
	assert.True(t, IsType(exhausted, ErrTypeExhausted))

	// a double wrap still resolves
	assert.Equal(t, KindBadRequest, GetKind(InternalError("serve failed", exhausted)))

	// wrappers over kind-less causes fall back to internal
	assert.Equal(t, KindInternal, GetKind(ExhaustedError("nothing served", nil)))
	assert.Equal(t, KindInternal, GetKind(ExhaustedError("nothing served", errors.New("plain"))))
}
