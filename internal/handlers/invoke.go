package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"model-router/internal/common/errors"
	"model-router/internal/common/logging"
)

// maxRequestBytes bounds the accepted request body
const maxRequestBytes = 1 << 20 // 1MB

// degradedResponse is the envelope returned when the sentinel fallback
// tier serves
type degradedResponse struct {
	Fallback bool   `json:"fallback"`
	Message  string `json:"message"`
}

// errorResponse is the envelope for failed invocations. Fallback is set
// when the caller got no model output because the whole chain failed.
type errorResponse struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Invoke serves one model request for the use case in the path
// @Summary Invoke a model for a use case
// @Description Routes the request through the use case's fallback chain and returns the first served response
// @Tags invoke
// @Accept json
// @Produce json
// @Param useCase path string true "Use case name"
// @Success 200 {object} json.RawMessage "Model response, or a fallback envelope when degraded"
// @Failure 400 {object} errorResponse "Invalid request"
// @Failure 404 {object} errorResponse "Unknown use case"
// @Failure 503 {object} errorResponse "All tiers exhausted"
// @Router /invoke/{useCase} [post]
func (h *Handlers) Invoke(w http.ResponseWriter, r *http.Request) {
	useCase := mux.Vars(r)["useCase"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}
	if len(body) > maxRequestBytes {
		h.writeError(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return
	}
	if len(body) == 0 {
		h.writeError(w, http.StatusBadRequest, errorResponse{Error: "request body is required"})
		return
	}

	result, err := h.orchestrator.Invoke(r.Context(), useCase, body)
	if err != nil {
		h.writeInvokeError(w, useCase, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Degraded {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(result.Payload, &payload)
		json.NewEncoder(w).Encode(degradedResponse{Fallback: true, Message: payload.Message})
		return
	}

	w.Header().Set("X-Served-By", result.TierKey)
	w.Header().Set("X-Tier-Level", strconv.Itoa(result.Level))
	if result.CacheHit {
		w.Header().Set("X-Cache", "hit")
	}
	w.Write(result.Payload)
}

func (h *Handlers) writeInvokeError(w http.ResponseWriter, useCase string, err error) {
	kind := errors.GetKind(err)
	resp := errorResponse{Error: err.Error(), Kind: string(kind)}

	var status int
	switch {
	case errors.IsType(err, errors.ErrTypeValidation):
		status = http.StatusBadRequest
	case errors.IsType(err, errors.ErrTypeConfig):
		status = http.StatusNotFound
	case errors.IsType(err, errors.ErrTypeExhausted):
		resp.Fallback = true
		// a fatal abort still carries the underlying kind; malformed
		// requests stay the caller's fault
		if kind == errors.KindBadRequest {
			status = http.StatusBadRequest
		} else {
			status = http.StatusServiceUnavailable
		}
	case errors.IsType(err, errors.ErrTypeBackend):
		switch kind {
		case errors.KindBadRequest:
			status = http.StatusBadRequest
		case errors.KindUnauthorized:
			status = http.StatusBadGateway
		case errors.KindTimeout:
			status = http.StatusGatewayTimeout
		default:
			status = http.StatusBadGateway
		}
	default:
		status = http.StatusInternalServerError
	}

	h.logger.Warn("Invocation failed",
		logging.Field{Key: "use_case", Value: useCase},
		logging.Field{Key: "status", Value: status},
		logging.Field{Key: "kind", Value: string(kind)},
	)
	h.writeError(w, status, resp)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
