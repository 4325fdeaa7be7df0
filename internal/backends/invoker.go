// Package backends performs the actual remote calls against model
// backends. The wire protocol here is JSON over HTTP; the rest of the
// router only sees payloads and typed errors.
package backends

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"model-router/internal/chain"
	"model-router/internal/common/errors"
	"model-router/internal/common/logging"
)

// maxResponseBytes bounds how much of a backend response is read
const maxResponseBytes = 10 << 20

// HTTPInvoker invokes backends over HTTP using the registry loaded from
// the routes file
type HTTPInvoker struct {
	client   *http.Client
	backends map[string]chain.BackendConfig
	logger   logging.Logger
}

// NewHTTPInvoker creates an invoker for the given backend registry
func NewHTTPInvoker(client *http.Client, backends map[string]chain.BackendConfig, logger logging.Logger) *HTTPInvoker {
	if client == nil {
		client = NewHTTPClient()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &HTTPInvoker{
		client:   client,
		backends: backends,
		logger:   logger.WithFields(logging.Field{Key: "component", Value: "http_invoker"}),
	}
}

// Invoke posts the request to the backend and returns its response body.
// Failures carry an enumerated kind so the retry executor can classify
// them without inspecting messages.
func (i *HTTPInvoker) Invoke(ctx context.Context, backendKey string, request json.RawMessage) (json.RawMessage, error) {
	backend, ok := i.backends[backendKey]
	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("backend %q is not configured", backendKey))
	}

	body := request
	if backend.Model != "" {
		wrapped, err := injectModel(request, backend.Model)
		if err != nil {
			return nil, err
		}
		body = wrapped
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, backend.URL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.InternalError("failed to build backend request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if backend.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+backend.AuthToken)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.BackendError("backend call timed out", errors.KindTimeout, err).
				WithContext("backend", backendKey)
		}
		return nil, errors.BackendError("backend unreachable", errors.KindUnavailable, err).
			WithContext("backend", backendKey)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.BackendError("failed to read backend response", errors.KindUnavailable, err).
			WithContext("backend", backendKey)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(backendKey, resp.StatusCode)
	}

	if !json.Valid(payload) {
		return nil, errors.BackendError("backend returned invalid JSON", errors.KindInternal, nil).
			WithContext("backend", backendKey)
	}
	return payload, nil
}

// statusError maps an HTTP status to the enumerated failure kind
func statusError(backendKey string, status int) error {
	var kind errors.Kind
	switch {
	case status == http.StatusTooManyRequests:
		kind = errors.KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = errors.KindTimeout
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = errors.KindUnauthorized
	case status >= 400 && status < 500:
		kind = errors.KindBadRequest
	case status >= 500:
		kind = errors.KindUnavailable
	default:
		kind = errors.KindInternal
	}

	return errors.BackendError(fmt.Sprintf("backend returned status %d", status), kind, nil).
		WithContext("backend", backendKey).
		WithContext("status", status)
}

// injectModel sets the backend's configured model name on the outbound
// request when the caller did not choose one
func injectModel(request json.RawMessage, model string) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(request, &fields); err != nil {
		return nil, errors.ValidationError("request is not a JSON object")
	}
	if _, ok := fields["model"]; !ok {
		nameJSON, _ := json.Marshal(model)
		fields["model"] = nameJSON
	}
	return json.Marshal(fields)
}
