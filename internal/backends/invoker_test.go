package backends

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-router/internal/chain"
	"model-router/internal/common/errors"
	"model-router/internal/common/logging"
)

func newInvokerFor(t *testing.T, handler http.HandlerFunc, cfg chain.BackendConfig) *HTTPInvoker {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.URL = server.URL
	return NewHTTPInvoker(server.Client(), map[string]chain.BackendConfig{"b": cfg}, logging.NewNopLogger())
}

func TestHTTPInvoker_Success(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody map[string]interface{}

	invoker := newInvokerFor(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"summary": "ok"}`))
	}, chain.BackendConfig{AuthToken: "tok-a", Model: "gpt-4"})

	payload, err := invoker.Invoke(context.Background(), "b", json.RawMessage(`{"prompt": "hi"}`))
	require.NoError(t, err)

	assert.JSONEq(t, `{"summary": "ok"}`, string(payload))
	assert.Equal(t, "Bearer tok-a", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "hi", gotBody["prompt"])
	assert.Equal(t, "gpt-4", gotBody["model"], "configured model injected when caller sets none")
}

func TestHTTPInvoker_CallerModelWins(t *testing.T) {
	var gotBody map[string]interface{}
	invoker := newInvokerFor(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}, chain.BackendConfig{Model: "gpt-4"})

	_, err := invoker.Invoke(context.Background(), "b", json.RawMessage(`{"model": "gpt-4-mini"}`))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4-mini", gotBody["model"])
}

func TestHTTPInvoker_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		kind      errors.Kind
		retryable bool
	}{
		{http.StatusTooManyRequests, errors.KindRateLimited, true},
		{http.StatusGatewayTimeout, errors.KindTimeout, true},
		{http.StatusServiceUnavailable, errors.KindUnavailable, true},
		{http.StatusInternalServerError, errors.KindUnavailable, true},
		{http.StatusBadRequest, errors.KindBadRequest, false},
		{http.StatusUnprocessableEntity, errors.KindBadRequest, false},
		{http.StatusUnauthorized, errors.KindUnauthorized, false},
		{http.StatusForbidden, errors.KindUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			invoker := newInvokerFor(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}, chain.BackendConfig{})

			_, err := invoker.Invoke(context.Background(), "b", json.RawMessage(`{}`))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeBackend))
			assert.Equal(t, tt.kind, errors.GetKind(err))
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
		})
	}
}

func TestHTTPInvoker_UnknownBackend(t *testing.T) {
	invoker := NewHTTPInvoker(nil, map[string]chain.BackendConfig{}, logging.NewNopLogger())

	_, err := invoker.Invoke(context.Background(), "ghost", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestHTTPInvoker_Timeout(t *testing.T) {
	invoker := newInvokerFor(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}, chain.BackendConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := invoker.Invoke(ctx, "b", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, errors.KindTimeout, errors.GetKind(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestHTTPInvoker_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	invoker := NewHTTPInvoker(nil, map[string]chain.BackendConfig{
		"b": {URL: url},
	}, logging.NewNopLogger())

	_, err := invoker.Invoke(context.Background(), "b", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, errors.KindUnavailable, errors.GetKind(err))
}

func TestHTTPInvoker_InvalidResponseBody(t *testing.T) {
	invoker := newInvokerFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}, chain.BackendConfig{})

	_, err := invoker.Invoke(context.Background(), "b", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, errors.KindInternal, errors.GetKind(err))
	assert.False(t, errors.IsRetryable(err))
}
