// Package handlers exposes the invoke API and the operational endpoints
// over HTTP.
package handlers

import (
	"context"
	"time"

	"model-router/internal/audit"
	"model-router/internal/chain"
	"model-router/internal/circuit"
	"model-router/internal/common/logging"
	"model-router/internal/orchestrator"
)

// StatsProvider aggregates the audit log for the stats endpoint
type StatsProvider interface {
	GetStats(ctx context.Context) (audit.Stats, error)
}

// namedCheck is one component liveness probe for the health endpoint
type namedCheck struct {
	name  string
	check func(ctx context.Context) error
}

type Handlers struct {
	orchestrator *orchestrator.Orchestrator
	registry     *circuit.Registry
	resolver     *chain.Resolver
	stats        StatsProvider
	checks       []namedCheck
	logger       logging.Logger
	startTime    time.Time
}

// New creates the handler set. stats may be nil when the audit store is
// disabled.
func New(orch *orchestrator.Orchestrator, registry *circuit.Registry, resolver *chain.Resolver, stats StatsProvider, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		orchestrator: orch,
		registry:     registry,
		resolver:     resolver,
		stats:        stats,
		logger:       logger.WithFields(logging.Field{Key: "component", Value: "handlers"}),
		startTime:    time.Now(),
	}
}

// AddCheck registers a component probe reported by the health endpoint
func (h *Handlers) AddCheck(name string, check func(ctx context.Context) error) {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}
