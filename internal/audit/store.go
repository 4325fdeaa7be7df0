// Package audit persists invocation and circuit events to a relational
// store for offline analysis. Writes are fire-and-forget: a failed insert
// is logged and dropped, never surfaced to the request path.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"

	"model-router/internal/common/logging"
	"model-router/internal/metrics"
)

// Config selects the audit database
type Config struct {
	// Driver is "sqlite3" or "pgx"
	Driver string
	// DSN is the database path (sqlite) or connection URL (postgres)
	DSN string
	// Retention is how long events are kept
	Retention time.Duration
	// SweepSchedule is the cron spec for the retention sweep
	SweepSchedule string
}

// Store writes events to the audit database. It implements metrics.Sink.
type Store struct {
	db        *sql.DB
	driver    string
	logger    logging.Logger
	retention time.Duration
	cron      *cron.Cron
}

// Open connects to the audit database and runs migrations
func Open(cfg Config, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	s := &Store{
		db:        db,
		driver:    cfg.Driver,
		logger:    logger.WithFields(logging.Field{Key: "component", Value: "audit"}),
		retention: cfg.Retention,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS invocation_log (
			id TEXT PRIMARY KEY,
			use_case TEXT NOT NULL,
			tier_key TEXT,
			level INTEGER NOT NULL,
			success BOOLEAN NOT NULL,
			error_kind TEXT,
			attempts INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL,
			cache_hit BOOLEAN NOT NULL,
			degraded BOOLEAN NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invocation_log_occurred_at ON invocation_log(occurred_at)`,
		`CREATE TABLE IF NOT EXISTS circuit_log (
			id TEXT PRIMARY KEY,
			backend_key TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			failure_count INTEGER NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_circuit_log_occurred_at ON circuit_log(occurred_at)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites "?" placeholders to "$n" for the postgres driver
func (s *Store) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EmitInvocation persists one invocation event
func (s *Store) EmitInvocation(ctx context.Context, event metrics.InvocationEvent) {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO invocation_log (id, use_case, tier_key, level, success, error_kind, attempts, latency_ms, cache_hit, degraded, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		event.ID, event.UseCase, event.TierKey, event.Level, event.Success,
		event.ErrorKind, event.Attempts, event.LatencyMs, event.CacheHit,
		event.Degraded, event.Timestamp,
	)
	if err != nil {
		s.logger.Warn("Failed to persist invocation event",
			logging.Field{Key: "event_id", Value: event.ID},
			logging.Field{Key: "error", Value: err.Error()},
		)
	}
}

// EmitCircuitChange persists one circuit transition event
func (s *Store) EmitCircuitChange(ctx context.Context, event metrics.CircuitStateChangeEvent) {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO circuit_log (id, backend_key, from_state, to_state, failure_count, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		event.ID, event.BackendKey, event.FromState, event.ToState,
		event.FailureCount, event.Timestamp,
	)
	if err != nil {
		s.logger.Warn("Failed to persist circuit event",
			logging.Field{Key: "event_id", Value: event.ID},
			logging.Field{Key: "error", Value: err.Error()},
		)
	}
}

// Stats summarizes the invocation log
type Stats struct {
	TotalInvocations  int `json:"total_invocations"`
	SuccessfulServes  int `json:"successful_serves"`
	FailedInvocations int `json:"failed_invocations"`
	CacheHits         int `json:"cache_hits"`
	DegradedServes    int `json:"degraded_serves"`
}

// GetStats aggregates the invocation log
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN NOT success THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN degraded THEN 1 ELSE 0 END), 0)
		 FROM invocation_log`,
	).Scan(&stats.TotalInvocations, &stats.SuccessfulServes, &stats.FailedInvocations,
		&stats.CacheHits, &stats.DegradedServes)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate audit stats: %w", err)
	}
	return stats, nil
}

// Purge deletes events older than cutoff and returns how many rows went
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"invocation_log", "circuit_log"} {
		res, err := s.db.ExecContext(ctx, s.rebind(
			fmt.Sprintf("DELETE FROM %s WHERE occurred_at < ?", table)), cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to purge %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// StartRetention schedules the periodic retention sweep
func (s *Store) StartRetention(schedule string) error {
	if s.retention <= 0 {
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		cutoff := time.Now().Add(-s.retention)
		n, err := s.Purge(context.Background(), cutoff)
		if err != nil {
			s.logger.Warn("Retention sweep failed", logging.Field{Key: "error", Value: err.Error()})
			return
		}
		if n > 0 {
			s.logger.Info("Retention sweep completed",
				logging.Field{Key: "purged_rows", Value: n},
				logging.Field{Key: "cutoff", Value: cutoff},
			)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	return nil
}

// Ping reports whether the audit database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close stops the sweep and closes the database
func (s *Store) Close() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	return s.db.Close()
}
