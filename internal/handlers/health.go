package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// Health returns service liveness, component checks, and the configured
// use cases
// @Summary Health check
// @Description Returns service status, component health, uptime, and the configured use cases
// @Tags operations
// @Produce json
// @Success 200 {object} map[string]interface{} "Service health"
// @Failure 503 {object} map[string]interface{} "One or more components are degraded"
// @Router /health [get]
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(h.checks))
	healthy := true
	for _, c := range h.checks {
		if err := c.check(r.Context()); err != nil {
			components[c.name] = err.Error()
			healthy = false
			continue
		}
		components[c.name] = "ok"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":         status,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"use_cases":      h.resolver.UseCases(),
	}
	if len(components) > 0 {
		response["components"] = components
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}
