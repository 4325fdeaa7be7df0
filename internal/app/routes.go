package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"model-router/internal/handlers"
	"model-router/internal/middleware"
)

// SetupRoutes configures all HTTP routes for the application
func SetupRoutes(router *mux.Router, h *handlers.Handlers, authMiddleware func(http.Handler) http.Handler) {
	// Add logging middleware to all routes
	router.Use(middleware.LoggingMiddleware)

	// Health check (no auth required)
	router.HandleFunc("/health", h.Health).Methods("GET")

	// Protected routes - require authentication when enabled
	protected := router.NewRoute().Subrouter()
	if authMiddleware != nil {
		protected.Use(authMiddleware)
	}

	// Invoke endpoint (protected)
	protected.HandleFunc("/invoke/{useCase}", h.Invoke).Methods("POST")

	// Statistics endpoints (protected)
	protected.HandleFunc("/api/stats", h.GetStats).Methods("GET")
	protected.HandleFunc("/api/circuits", h.GetCircuits).Methods("GET")
}
