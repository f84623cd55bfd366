// Package jobs contains implementations of scheduled jobs for Perfect Connect.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Moeed-Tahir/perfect-connect/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE CONNECTIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Handle(ctx context.Context, cmd command.ReconcileConnectionsCommand) (*command.ReconcileConnectionsResult, error)
}

// ReconcileConnectionsJob periodically re-derives connections from live interest edges.
// It repairs connections lost to a failed write after an edge commit and
// retires connections whose pair has no edges left.
type ReconcileConnectionsJob struct {
	reconciler Reconciler
	logger     zerolog.Logger
	config     ReconcileConnectionsConfig

	lastStats atomic.Value // *ReconcileStats
}

// ReconcileConnectionsConfig contains configuration for the job.
type ReconcileConnectionsConfig struct {
	// BatchSize is the page size used to scan edges and connections.
	BatchSize int

	// Timeout is the maximum duration of one pass.
	Timeout time.Duration
}

// DefaultReconcileConnectionsConfig returns sensible defaults.
func DefaultReconcileConnectionsConfig() ReconcileConnectionsConfig {
	return ReconcileConnectionsConfig{
		BatchSize: command.DefaultReconcileBatchSize,
		Timeout:   5 * time.Minute,
	}
}

// ReconcileStats contains statistics from the last run.
type ReconcileStats struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	Duration     time.Duration
	PairsScanned int
	Repaired     int
	Refreshed    int
	Retired      int
	Failed       int
	Skipped      bool
}

// NewReconcileConnectionsJob creates a new reconcile job.
func NewReconcileConnectionsJob(reconciler Reconciler, logger zerolog.Logger, config ReconcileConnectionsConfig) *ReconcileConnectionsJob {
	def := DefaultReconcileConnectionsConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &ReconcileConnectionsJob{
		reconciler: reconciler,
		logger:     logger.With().Str("job", "reconcile_connections").Logger(),
		config:     config,
	}
}

// Name returns the job name.
func (j *ReconcileConnectionsJob) Name() string {
	return "reconcile_connections"
}

// Description returns a human-readable description.
func (j *ReconcileConnectionsJob) Description() string {
	return "Re-derives connections from live interest edges and retires orphans"
}

// Run executes one reconciliation pass.
func (j *ReconcileConnectionsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	startedAt := time.Now()
	correlationID := uuid.NewString()

	result, err := j.reconciler.Handle(ctx, command.ReconcileConnectionsCommand{
		BatchSize:     j.config.BatchSize,
		CorrelationID: correlationID,
	})
	if err != nil {
		j.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("reconciliation failed")
		return fmt.Errorf("reconcile connections: %w", err)
	}

	completedAt := time.Now()
	stats := &ReconcileStats{
		StartedAt:    startedAt,
		CompletedAt:  completedAt,
		Duration:     completedAt.Sub(startedAt),
		PairsScanned: result.PairsScanned,
		Repaired:     result.Repaired,
		Refreshed:    result.Refreshed,
		Retired:      result.Retired,
		Failed:       result.Failed,
		Skipped:      result.Skipped,
	}
	j.lastStats.Store(stats)

	if result.Skipped {
		j.logger.Debug().Msg("another instance holds the reconcile lock")
		return nil
	}
	if result.Failed > 0 {
		return fmt.Errorf("reconcile connections: %d pairs failed", result.Failed)
	}
	return nil
}

// LastStats returns the statistics of the last successful pass, or nil.
func (j *ReconcileConnectionsJob) LastStats() *ReconcileStats {
	if v := j.lastStats.Load(); v != nil {
		return v.(*ReconcileStats)
	}
	return nil
}
