package retry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-router/internal/chain"
	"model-router/internal/common/errors"
	"model-router/internal/common/logging"
)

// scriptedInvoker returns its responses in order, repeating the last one
type scriptedInvoker struct {
	responses []func() (json.RawMessage, error)
	calls     int
	deadlines []bool
}

func (s *scriptedInvoker) Invoke(ctx context.Context, key string, request json.RawMessage) (json.RawMessage, error) {
	_, hasDeadline := ctx.Deadline()
	s.deadlines = append(s.deadlines, hasDeadline)

	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return s.responses[idx]()
}

func succeed(payload string) func() (json.RawMessage, error) {
	return func() (json.RawMessage, error) { return json.RawMessage(payload), nil }
}

func fail(err error) func() (json.RawMessage, error) {
	return func() (json.RawMessage, error) { return nil, err }
}

func testTier(maxRetries int) chain.BackendTier {
	return chain.BackendTier{
		Key:   "gpt4-primary",
		Level: 0,
		Retry: chain.RetryPolicy{MaxRetries: maxRetries, Timeout: time.Second},
	}
}

func newTestExecutor(invoker Invoker, slept *[]time.Duration) *Executor {
	cfg := DefaultConfig()
	cfg.JitterFactor = 0
	return NewExecutor(invoker, cfg,
		WithLogger(logging.NewNopLogger()),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			if slept != nil {
				*slept = append(*slept, d)
			}
			return nil
		}),
	)
}

func TestExecutor_FirstAttemptSucceeds(t *testing.T) {
	invoker := &scriptedInvoker{responses: []func() (json.RawMessage, error){succeed(`{"ok": true}`)}}
	executor := newTestExecutor(invoker, nil)

	outcome := executor.Invoke(context.Background(), testTier(3), json.RawMessage(`{}`))

	assert.True(t, outcome.Success)
	assert.JSONEq(t, `{"ok": true}`, string(outcome.Payload))
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, "gpt4-primary", outcome.TierKey)
	assert.Equal(t, 1, invoker.calls)
}

func TestExecutor_RetryableFailureThenSuccess(t *testing.T) {
	invoker := &scriptedInvoker{responses: []func() (json.RawMessage, error){
		fail(errors.BackendError("throttled", errors.KindRateLimited, nil)),
		fail(errors.BackendError("gateway", errors.KindUnavailable, nil)),
		succeed(`{"ok": true}`),
	}}
	var slept []time.Duration
	executor := newTestExecutor(invoker, &slept)

	outcome := executor.Invoke(context.Background(), testTier(3), json.RawMessage(`{}`))

	assert.True(t, outcome.Success)
	assert.Equal(t, 3, outcome.Attempts)

	// exponential backoff between attempts: base, base*factor
	require.Len(t, slept, 2)
	assert.Equal(t, time.Second, slept[0])
	assert.Equal(t, 2*time.Second, slept[1])
}

func TestExecutor_NonRetryableFailsImmediately(t *testing.T) {
	invoker := &scriptedInvoker{responses: []func() (json.RawMessage, error){
		fail(errors.BackendError("malformed prompt", errors.KindBadRequest, nil)),
	}}
	var slept []time.Duration
	executor := newTestExecutor(invoker, &slept)

	outcome := executor.Invoke(context.Background(), testTier(5), json.RawMessage(`{}`))

	assert.False(t, outcome.Success)
	assert.False(t, outcome.Retryable)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, 1, invoker.calls, "no retry after a fatal failure")
	assert.Empty(t, slept)
	assert.Equal(t, errors.KindBadRequest, errors.GetKind(outcome.Err))
}

func TestExecutor_RetryBudgetExhausted(t *testing.T) {
	invoker := &scriptedInvoker{responses: []func() (json.RawMessage, error){
		fail(errors.BackendError("unreachable", errors.KindUnavailable, nil)),
	}}
	var slept []time.Duration
	executor := newTestExecutor(invoker, &slept)

	outcome := executor.Invoke(context.Background(), testTier(3), json.RawMessage(`{}`))

	assert.False(t, outcome.Success)
	assert.True(t, outcome.Retryable, "exhausted budget on a retryable error stays retryable")
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 3, invoker.calls)
	assert.Len(t, slept, 2, "no backoff after the final attempt")
}

func TestExecutor_ZeroMaxRetriesStillAttemptsOnce(t *testing.T) {
	invoker := &scriptedInvoker{responses: []func() (json.RawMessage, error){succeed(`{}`)}}
	executor := newTestExecutor(invoker, nil)

	outcome := executor.Invoke(context.Background(), testTier(0), json.RawMessage(`{}`))

	assert.True(t, outcome.Success)
	assert.Equal(t, 1, invoker.calls)
}

func TestExecutor_AttemptsCarryDeadline(t *testing.T) {
	invoker := &scriptedInvoker{responses: []func() (json.RawMessage, error){succeed(`{}`)}}
	executor := newTestExecutor(invoker, nil)

	executor.Invoke(context.Background(), testTier(1), json.RawMessage(`{}`))

	require.Len(t, invoker.deadlines, 1)
	assert.True(t, invoker.deadlines[0])
}

func TestExecutor_DeadlineClassifiedAsTimeout(t *testing.T) {
	invoker := &scriptedInvoker{responses: []func() (json.RawMessage, error){
		fail(context.DeadlineExceeded),
		succeed(`{"ok": true}`),
	}}
	executor := newTestExecutor(invoker, nil)

	outcome := executor.Invoke(context.Background(), testTier(2), json.RawMessage(`{}`))

	// the raw deadline error is wrapped as a retryable timeout, so the
	// second attempt runs and succeeds
	assert.True(t, outcome.Success)
	assert.Equal(t, 2, outcome.Attempts)
}

func TestExecutor_CanceledContextStopsBackoff(t *testing.T) {
	invoker := &scriptedInvoker{responses: []func() (json.RawMessage, error){
		fail(errors.BackendError("unreachable", errors.KindUnavailable, nil)),
	}}
	cfg := DefaultConfig()
	cfg.JitterFactor = 0
	executor := NewExecutor(invoker, cfg,
		WithLogger(logging.NewNopLogger()),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			return context.Canceled
		}),
	)

	outcome := executor.Invoke(context.Background(), testTier(3), json.RawMessage(`{}`))

	assert.False(t, outcome.Success)
	assert.Equal(t, 1, invoker.calls, "no further attempts after cancellation")
}

func TestExecutor_BackoffCapped(t *testing.T) {
	invoker := &scriptedInvoker{responses: []func() (json.RawMessage, error){
		fail(errors.BackendError("unreachable", errors.KindUnavailable, nil)),
	}}
	var slept []time.Duration
	cfg := Config{
		InitialBackoff: time.Second,
		BackoffFactor:  10,
		MaxBackoff:     3 * time.Second,
	}
	executor := NewExecutor(invoker, cfg,
		WithLogger(logging.NewNopLogger()),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}),
	)

	executor.Invoke(context.Background(), testTier(4), json.RawMessage(`{}`))

	require.Len(t, slept, 3)
	assert.Equal(t, time.Second, slept[0])
	assert.Equal(t, 3*time.Second, slept[1])
	assert.Equal(t, 3*time.Second, slept[2])
}
