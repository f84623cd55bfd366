package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPSERT PARTICIPANT COMMAND
// Profile administration for seeding and the HTTP surface.
// The match engine itself never writes profiles.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertParticipantCommand contains a full participant profile.
type UpsertParticipantCommand struct {
	ID          string `validate:"required,notblank,max=128,excludesall=:"`
	DisplayName string `validate:"max=128"`
	Host        *participant.HostProfile
	Candidate   *participant.CandidateProfile
}

// UpsertParticipantResult contains the stored participant.
type UpsertParticipantResult struct {
	Participant *participant.Participant
	Created     bool
}

// UpsertParticipantHandler handles the UpsertParticipantCommand.
type UpsertParticipantHandler struct {
	participants participant.Repository
}

// NewUpsertParticipantHandler creates a new UpsertParticipantHandler.
func NewUpsertParticipantHandler(participants participant.Repository) *UpsertParticipantHandler {
	return &UpsertParticipantHandler{participants: participants}
}

// Handle creates the participant or replaces its profile, keeping CreatedAt.
func (h *UpsertParticipantHandler) Handle(ctx context.Context, cmd UpsertParticipantCommand) (*UpsertParticipantResult, error) {
	if err := validateCommand("UpsertParticipant", cmd); err != nil {
		return nil, fmt.Errorf("upsert_participant: %w", err)
	}

	p, err := participant.NewParticipant(participant.NewParticipantParams{
		ID:          cmd.ID,
		DisplayName: cmd.DisplayName,
		Host:        cmd.Host,
		Candidate:   cmd.Candidate,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert_participant: %w", err)
	}

	created := true
	existing, err := h.participants.GetByID(ctx, p.ID)
	switch {
	case err == nil:
		created = false
		p.CreatedAt = existing.CreatedAt
	case errors.Is(err, participant.ErrParticipantNotFound):
	default:
		return nil, fmt.Errorf("upsert_participant: load: %w", asStorageError(err))
	}

	if err := h.participants.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert_participant: save: %w", asStorageError(err))
	}

	return &UpsertParticipantResult{Participant: p, Created: created}, nil
}
