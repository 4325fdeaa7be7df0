package app

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"model-router/internal/handlers"
	"model-router/internal/server"
)

// RunServer builds the HTTP server with all handlers configured
func (app *App) RunServer() (*server.Server, http.Handler) {
	h := handlers.New(
		app.Orchestrator,
		app.Registry,
		app.Resolver,
		app.AuditStore,
		app.Logger,
	)

	if app.RedisClient != nil {
		redisClient := app.RedisClient
		h.AddCheck("redis", func(context.Context) error { return redisClient.Health() })
	}
	if app.AuditStore != nil {
		h.AddCheck("audit", app.AuditStore.Ping)
	}

	router := mux.NewRouter()

	var authMiddleware func(http.Handler) http.Handler
	if app.Auth != nil {
		authMiddleware = app.Auth.RequireAuth
	}
	SetupRoutes(router, h, authMiddleware)

	srv := server.New(router, app.Config.Port, "", "")
	return srv, router
}
