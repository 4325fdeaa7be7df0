package handlers

import (
	"encoding/json"
	"net/http"
)

// GetStats returns circuit breaker states and invocation totals
// @Summary Get router statistics
// @Description Returns the current circuit breaker snapshot and aggregated invocation counts
// @Tags statistics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "Router statistics"
// @Failure 500 {object} errorResponse "Failed to get statistics"
// @Router /api/stats [get]
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	circuits, err := h.registry.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get circuit statistics"})
		return
	}

	response := map[string]interface{}{
		"circuits": circuits,
	}

	if h.stats != nil {
		invocations, err := h.stats.GetStats(r.Context())
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get invocation statistics"})
			return
		}
		response["invocations"] = invocations
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetCircuits returns just the circuit breaker snapshot
// @Summary Get circuit breaker states
// @Description Returns the current record for every known backend breaker
// @Tags statistics
// @Produce json
// @Security BearerAuth
// @Success 200 {array} circuit.Stats "Circuit breaker records"
// @Failure 500 {object} errorResponse "Failed to get circuit states"
// @Router /api/circuits [get]
func (h *Handlers) GetCircuits(w http.ResponseWriter, r *http.Request) {
	circuits, err := h.registry.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get circuit statistics"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(circuits)
}
