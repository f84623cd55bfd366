package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
	"github.com/Moeed-Tahir/perfect-connect/pkg/metrics"
	"github.com/Moeed-Tahir/perfect-connect/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE CONNECTIONS COMMAND
// Re-derives the connection set from the live edge set:
// every mutual pair gets a freshly scored connection, and connections
// whose pair has no edges left are removed.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileLockResource names the distributed lock held during a pass.
const ReconcileLockResource = "reconcile_connections"

// Locker is a best-effort distributed lock.
type Locker interface {
	TryLock(ctx context.Context, resource, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, resource, token string) error
}

// ReconcileConnectionsCommand contains the options of a reconciliation pass.
type ReconcileConnectionsCommand struct {
	// BatchSize is the page size used to scan the edge and connection sets.
	BatchSize int `validate:"gte=0,lte=10000"`

	// DryRun reports what would change without writing.
	DryRun bool

	// CorrelationID for tracing.
	CorrelationID string
}

// ReconcileConnectionsResult contains the outcome of a pass.
type ReconcileConnectionsResult struct {
	// PairsScanned is the number of mutual pairs examined.
	PairsScanned int

	// Repaired counts connections that were missing and got created.
	Repaired int

	// Refreshed counts existing connections whose report was rewritten.
	Refreshed int

	// Retired counts orphaned connections that were removed.
	Retired int

	// Failed counts pairs whose writes failed after retries.
	Failed int

	// Skipped is true when another instance holds the reconcile lock.
	Skipped bool

	Duration time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileConnectionsHandler handles the ReconcileConnectionsCommand.
type ReconcileConnectionsHandler struct {
	participants   participant.Repository
	edges          social.EdgeRepository
	connections    social.ConnectionRepository
	scorer         *social.Scorer
	eventPublisher shared.EventPublisher
	locker         Locker
	lockTTL        time.Duration
	retrier        *retry.Retrier
	metrics        *metrics.Manager
	logger         zerolog.Logger
}

// ReconcileConnectionsParams contains the handler dependencies.
type ReconcileConnectionsParams struct {
	Participants   participant.Repository
	Edges          social.EdgeRepository
	Connections    social.ConnectionRepository
	Scorer         *social.Scorer
	EventPublisher shared.EventPublisher

	// Locker is optional; without it every pass runs.
	Locker  Locker
	LockTTL time.Duration

	// MaxAttempts and InitialDelay configure write retries.
	MaxAttempts  int
	InitialDelay time.Duration

	Metrics *metrics.Manager
	Logger  zerolog.Logger
}

// DefaultReconcileBatchSize is used when the command leaves BatchSize unset.
const DefaultReconcileBatchSize = 500

// NewReconcileConnectionsHandler creates a new ReconcileConnectionsHandler.
func NewReconcileConnectionsHandler(params ReconcileConnectionsParams) *ReconcileConnectionsHandler {
	scorer := params.Scorer
	if scorer == nil {
		scorer = social.NewScorer(social.DefaultScoringPolicy())
	}
	if params.MaxAttempts <= 0 {
		params.MaxAttempts = 3
	}
	if params.InitialDelay <= 0 {
		params.InitialDelay = 100 * time.Millisecond
	}
	if params.LockTTL <= 0 {
		params.LockTTL = 5 * time.Minute
	}
	return &ReconcileConnectionsHandler{
		participants:   params.Participants,
		edges:          params.Edges,
		connections:    params.Connections,
		scorer:         scorer,
		eventPublisher: params.EventPublisher,
		locker:         params.Locker,
		lockTTL:        params.LockTTL,
		retrier:        retry.StorageRetrier(params.MaxAttempts, params.InitialDelay, shared.IsRetryable),
		metrics:        params.Metrics,
		logger:         params.Logger.With().Str("handler", "reconcile_connections").Logger(),
	}
}

// Handle executes a reconciliation pass.
func (h *ReconcileConnectionsHandler) Handle(ctx context.Context, cmd ReconcileConnectionsCommand) (*ReconcileConnectionsResult, error) {
	if err := validateCommand("ReconcileConnections", cmd); err != nil {
		return nil, fmt.Errorf("reconcile_connections: %w", err)
	}
	if cmd.BatchSize == 0 {
		cmd.BatchSize = DefaultReconcileBatchSize
	}

	startedAt := time.Now()
	result := &ReconcileConnectionsResult{}

	if h.locker != nil {
		token := uuid.NewString()
		acquired, err := h.locker.TryLock(ctx, ReconcileLockResource, token, h.lockTTL)
		if err != nil {
			h.logger.Warn().Err(err).Msg("reconcile lock unavailable, running unlocked")
		} else if !acquired {
			result.Skipped = true
			return result, nil
		} else {
			defer func() {
				if err := h.locker.Unlock(context.WithoutCancel(ctx), ReconcileLockResource, token); err != nil {
					h.logger.Warn().Err(err).Msg("failed to release reconcile lock")
				}
			}()
		}
	}

	if err := h.repairMutualPairs(ctx, cmd, result); err != nil {
		return nil, err
	}
	if err := h.retireOrphans(ctx, cmd, result); err != nil {
		return nil, err
	}

	result.Duration = time.Since(startedAt)

	if !cmd.DryRun {
		h.metrics.RecordReconcile(result.Repaired, result.Retired, result.Failed)
		if h.eventPublisher != nil {
			event := shared.NewReconcileCompletedEvent(result.PairsScanned, result.Repaired, result.Retired, result.Failed, result.Duration)
			_ = h.eventPublisher.Publish(withCorrelation(event, cmd.CorrelationID))
		}
	}

	h.logger.Info().
		Int("pairs_scanned", result.PairsScanned).
		Int("repaired", result.Repaired).
		Int("refreshed", result.Refreshed).
		Int("retired", result.Retired).
		Int("failed", result.Failed).
		Bool("dry_run", cmd.DryRun).
		Dur("duration", result.Duration).
		Msg("reconciliation completed")

	return result, nil
}

// repairMutualPairs upserts a connection for every mutual pair.
func (h *ReconcileConnectionsHandler) repairMutualPairs(ctx context.Context, cmd ReconcileConnectionsCommand, result *ReconcileConnectionsResult) error {
	writer := connectionWriter{edges: h.edges, connections: h.connections, scorer: h.scorer}

	for offset := 0; ; offset += cmd.BatchSize {
		pairs, err := h.edges.ListMutualPairs(ctx, social.ListOptions{Limit: cmd.BatchSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("reconcile_connections: list mutual pairs: %w", asStorageError(err))
		}

		for _, pair := range pairs {
			result.PairsScanned++
			if err := ctx.Err(); err != nil {
				return err
			}

			created, err := h.repairPair(ctx, writer, pair, cmd.DryRun)
			switch {
			case err != nil:
				result.Failed++
				h.logger.Error().Err(err).Str("pair_key", pair.PairKey.String()).Msg("failed to repair connection")
			case created:
				result.Repaired++
			default:
				result.Refreshed++
			}
		}

		if len(pairs) < cmd.BatchSize {
			return nil
		}
	}
}

func (h *ReconcileConnectionsHandler) repairPair(ctx context.Context, writer connectionWriter, pair social.MutualPair, dryRun bool) (bool, error) {
	a, b := pair.PairKey.Members()
	pa, err := h.participants.GetByID(ctx, a)
	if err != nil {
		return false, err
	}
	pb, err := h.participants.GetByID(ctx, b)
	if err != nil {
		return false, err
	}

	if dryRun {
		_, err := h.connections.Find(ctx, pair.PairKey)
		if errors.Is(err, social.ErrConnectionNotFound) {
			return true, nil
		}
		return false, err
	}

	return retry.DoWithData(ctx, h.retrier, func(ctx context.Context) (bool, error) {
		_, created, err := writer.write(ctx, pair.PairKey, pa, pb, pair.Programs)
		if err == nil {
			err = writer.syncPrograms(ctx, pair.PairKey)
		}
		return created, asStorageError(err)
	})
}

// retireOrphans removes connections whose pair has no live edges.
// The edge listing is a point-in-time read, so every candidate is counted
// again right before removal; a pair matched in between keeps its connection.
func (h *ReconcileConnectionsHandler) retireOrphans(ctx context.Context, cmd ReconcileConnectionsCommand, result *ReconcileConnectionsResult) error {
	live := make(map[social.PairKey]struct{})
	for offset := 0; ; offset += cmd.BatchSize {
		keys, err := h.edges.ListPairsWithEdges(ctx, social.ListOptions{Limit: cmd.BatchSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("reconcile_connections: list edge pairs: %w", asStorageError(err))
		}
		for _, k := range keys {
			live[k] = struct{}{}
		}
		if len(keys) < cmd.BatchSize {
			break
		}
	}

	var orphans []social.PairKey
	for offset := 0; ; offset += cmd.BatchSize {
		keys, err := h.connections.ListPairKeys(ctx, social.ListOptions{Limit: cmd.BatchSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("reconcile_connections: list connections: %w", asStorageError(err))
		}
		for _, k := range keys {
			if _, ok := live[k]; !ok {
				orphans = append(orphans, k)
			}
		}
		if len(keys) < cmd.BatchSize {
			break
		}
	}

	for _, key := range orphans {
		if cmd.DryRun {
			result.Retired++
			continue
		}

		removed, err := retry.DoWithData(ctx, h.retrier, func(ctx context.Context) (bool, error) {
			a, b := key.Members()
			remaining, err := h.edges.CountBetween(ctx, a, b)
			if err != nil {
				return false, asStorageError(err)
			}
			if remaining > 0 {
				return false, nil
			}
			removed, err := h.connections.Remove(ctx, key)
			return removed, asStorageError(err)
		})
		if err != nil {
			result.Failed++
			h.logger.Error().Err(err).Str("pair_key", key.String()).Msg("failed to retire orphaned connection")
			continue
		}
		if removed {
			result.Retired++
			h.metrics.RecordConnectionRetired()
			if h.eventPublisher != nil {
				_ = h.eventPublisher.Publish(withCorrelation(shared.NewConnectionRetiredEvent(key.String(), "reconciled"), cmd.CorrelationID))
			}
		}
	}
	return nil
}
