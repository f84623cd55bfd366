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
)

// ══════════════════════════════════════════════════════════════════════════════
// TOGGLE INTEREST COMMAND
// Flips one directed interest edge. Expressing interest may complete a match;
// withdrawing the last edge between a pair retires its connection.
// ══════════════════════════════════════════════════════════════════════════════

// ToggleInterestCommand contains the data to toggle an interest edge.
type ToggleInterestCommand struct {
	// LikerID is the participant expressing or withdrawing interest.
	LikerID string `validate:"required,notblank,max=128"`

	// LikeeID is the participant the interest is addressed to.
	LikeeID string `validate:"required,notblank,max=128"`

	// Program is the matching program; legacy spellings are accepted.
	Program string `validate:"required,notblank"`

	// Category is the program variant being evaluated.
	Category string `validate:"required,notblank,max=64"`

	// CorrelationID for tracing.
	CorrelationID string
}

// ToggleInterestResult contains the outcome of a toggle.
type ToggleInterestResult struct {
	// Liked is true when the edge exists after the call.
	Liked bool

	// Matched is true when the call completed a mutual interest.
	Matched bool

	// PairKey is the canonical key of the pair.
	PairKey social.PairKey

	// Report is set when Matched is true.
	Report *social.CommonalityReport

	// ConnectionRetired is true when the call removed the pair's connection.
	ConnectionRetired bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ToggleInterestHandler is the match engine entry point.
type ToggleInterestHandler struct {
	participants   participant.Repository
	edges          social.EdgeRepository
	connections    social.ConnectionRepository
	scorer         *social.Scorer
	eventPublisher shared.EventPublisher
	metrics        *metrics.Manager
	logger         zerolog.Logger
}

// ToggleInterestParams contains the handler dependencies.
type ToggleInterestParams struct {
	Participants   participant.Repository
	Edges          social.EdgeRepository
	Connections    social.ConnectionRepository
	Scorer         *social.Scorer
	EventPublisher shared.EventPublisher
	Metrics        *metrics.Manager
	Logger         zerolog.Logger
}

// NewToggleInterestHandler creates a new ToggleInterestHandler.
func NewToggleInterestHandler(params ToggleInterestParams) *ToggleInterestHandler {
	scorer := params.Scorer
	if scorer == nil {
		scorer = social.NewScorer(social.DefaultScoringPolicy())
	}
	return &ToggleInterestHandler{
		participants:   params.Participants,
		edges:          params.Edges,
		connections:    params.Connections,
		scorer:         scorer,
		eventPublisher: params.EventPublisher,
		metrics:        params.Metrics,
		logger:         params.Logger.With().Str("handler", "toggle_interest").Logger(),
	}
}

// Handle executes the toggle.
//
// On *PartialApplyError the result is still returned: the edge change is
// committed and the connection will be repaired by reconciliation.
func (h *ToggleInterestHandler) Handle(ctx context.Context, cmd ToggleInterestCommand) (*ToggleInterestResult, error) {
	startedAt := time.Now()

	key, pair, err := h.validate(ctx, cmd)
	if err != nil {
		h.metrics.RecordToggle(cmd.Program, "rejected", time.Since(startedAt))
		return nil, err
	}

	pairKey, _ := key.PairKey()
	log := h.logger.With().
		Str("pair_key", pairKey.String()).
		Str("program", key.Program.String()).
		Str("correlation_id", cmd.CorrelationID).
		Logger()

	exists, err := h.edges.Exists(ctx, key)
	if err != nil {
		h.metrics.RecordToggle(key.Program.String(), "failed", time.Since(startedAt))
		return nil, fmt.Errorf("toggle_interest: check edge: %w", asStorageError(err))
	}

	var (
		result  *ToggleInterestResult
		outcome string
	)
	if exists {
		result, err = h.withdraw(ctx, key, pairKey, cmd.CorrelationID, log)
		outcome = "withdrawn"
	} else {
		result, err = h.express(ctx, key, pairKey, pair, cmd.CorrelationID, log)
		outcome = "liked"
		if result != nil && result.Matched {
			outcome = "matched"
		}
	}

	switch {
	case err == nil:
	case IsPartialApply(err):
		outcome = "partial"
		h.metrics.RecordPartialApply()
		log.Warn().Err(err).Msg("connection write failed after edge commit")
	default:
		outcome = "failed"
	}
	h.metrics.RecordToggle(key.Program.String(), outcome, time.Since(startedAt))

	return result, err
}

// validate checks the command and loads both participants, liker first.
// Nothing is written on failure.
func (h *ToggleInterestHandler) validate(ctx context.Context, cmd ToggleInterestCommand) (social.EdgeKey, [2]*participant.Participant, error) {
	var pair [2]*participant.Participant

	if cmd.LikerID != "" && cmd.LikerID == cmd.LikeeID {
		return social.EdgeKey{}, pair, social.ErrSelfInterest
	}
	if err := validateCommand("ToggleInterest", cmd); err != nil {
		return social.EdgeKey{}, pair, fmt.Errorf("toggle_interest: %w", err)
	}

	program, err := participant.ParseProgram(cmd.Program)
	if err != nil {
		return social.EdgeKey{}, pair, fmt.Errorf("toggle_interest: %w", err)
	}

	key := social.EdgeKey{
		Liker:    participant.ParticipantID(cmd.LikerID),
		Likee:    participant.ParticipantID(cmd.LikeeID),
		Program:  program,
		Category: social.Category(cmd.Category),
	}
	if err := key.Validate(); err != nil {
		return social.EdgeKey{}, pair, fmt.Errorf("toggle_interest: %w", err)
	}

	for i, id := range []participant.ParticipantID{key.Liker, key.Likee} {
		p, err := h.participants.GetByID(ctx, id)
		if err != nil {
			return social.EdgeKey{}, pair, fmt.Errorf("toggle_interest: load %s: %w", id, asStorageError(err))
		}
		if !participant.IsProgramActive(p, program) {
			return social.EdgeKey{}, pair, fmt.Errorf("toggle_interest: %s in %s: %w", id, program, participant.ErrProgramNotActive)
		}
		pair[i] = p
	}

	return key, pair, nil
}

// withdraw deletes the edge and retires the connection when no edges remain.
func (h *ToggleInterestHandler) withdraw(ctx context.Context, key social.EdgeKey, pairKey social.PairKey, correlationID string, log zerolog.Logger) (*ToggleInterestResult, error) {
	existed, err := h.edges.Delete(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("toggle_interest: delete edge: %w", asStorageError(err))
	}
	result := &ToggleInterestResult{PairKey: pairKey}

	if existed {
		h.publish(shared.NewInterestWithdrawnEvent(key.Liker.String(), key.Likee.String(), key.Program.String(), key.Category.String()), correlationID)
	}

	remaining, err := h.edges.CountBetween(ctx, key.Liker, key.Likee)
	if err != nil {
		return result, newPartialApplyError(pairKey, "remove", err)
	}
	if remaining > 0 {
		writer := connectionWriter{edges: h.edges, connections: h.connections, scorer: h.scorer}
		if err := writer.syncPrograms(ctx, pairKey); err != nil {
			return result, newPartialApplyError(pairKey, "refresh", err)
		}
		return result, nil
	}

	removed, err := h.connections.Remove(ctx, pairKey)
	if err != nil {
		return result, newPartialApplyError(pairKey, "remove", err)
	}
	if removed {
		result.ConnectionRetired = true
		h.metrics.RecordConnectionRetired()
		h.publish(shared.NewConnectionRetiredEvent(pairKey.String(), "withdrawn"), correlationID)
		log.Info().Msg("connection retired")
	}
	return result, nil
}

// express writes the edge and materializes the connection on mutual interest.
func (h *ToggleInterestHandler) express(ctx context.Context, key social.EdgeKey, pairKey social.PairKey, pair [2]*participant.Participant, correlationID string, log zerolog.Logger) (*ToggleInterestResult, error) {
	edge, err := social.NewInterestEdge(social.NewInterestEdgeParams{
		ID:  uuid.NewString(),
		Key: key,
	})
	if err != nil {
		return nil, fmt.Errorf("toggle_interest: %w", err)
	}

	created, err := h.edges.Upsert(ctx, edge)
	if err != nil && !errors.Is(err, social.ErrDuplicateEdge) {
		return nil, fmt.Errorf("toggle_interest: upsert edge: %w", asStorageError(err))
	}
	if created {
		h.publish(shared.NewInterestExpressedEvent(key.Liker.String(), key.Likee.String(), key.Program.String(), key.Category.String()), correlationID)
	}

	result := &ToggleInterestResult{Liked: true, PairKey: pairKey}

	reciprocal, err := h.edges.FindReciprocal(ctx, key)
	if err != nil {
		return result, newPartialApplyError(pairKey, "upsert", err)
	}
	if reciprocal == nil {
		return result, nil
	}

	writer := connectionWriter{edges: h.edges, connections: h.connections, scorer: h.scorer}
	conn, _, err := writer.write(ctx, pairKey, pair[0], pair[1], []participant.Program{key.Program})
	if err != nil {
		return result, newPartialApplyError(pairKey, "upsert", err)
	}

	report := conn.Report.Clone()
	result.Matched = true
	result.Report = &report

	h.metrics.RecordMatch(key.Program.String())
	a, b := pairKey.Members()
	h.publish(shared.NewMatchMadeEvent(pairKey.String(), a.String(), b.String(), key.Program.String(), report.MatchPercentage, report.ToMap()), correlationID)
	log.Info().Int("match_percentage", report.MatchPercentage).Msg("match made")

	return result, nil
}

// publish sends an event fire-and-forget.
func (h *ToggleInterestHandler) publish(event shared.Event, correlationID string) {
	if h.eventPublisher == nil {
		return
	}
	_ = h.eventPublisher.Publish(withCorrelation(event, correlationID))
}
