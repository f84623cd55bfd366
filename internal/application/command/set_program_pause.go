package command

import (
	"context"
	"fmt"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET PROGRAM PAUSE COMMAND
// Pausing removes a sub-profile from discovery and blocks new interest
// in that program without deleting any data.
// ══════════════════════════════════════════════════════════════════════════════

// SetProgramPauseCommand contains the data to pause or resume a program.
type SetProgramPauseCommand struct {
	ParticipantID string `validate:"required,notblank,max=128"`

	// Role limits the change to one sub-profile; empty applies to every
	// sub-profile that has the program enabled.
	Role string `validate:"omitempty,oneof=host candidate"`

	Program string `validate:"required,notblank"`
	Paused  bool

	// CorrelationID for tracing.
	CorrelationID string
}

// SetProgramPauseResult lists the roles that changed.
type SetProgramPauseResult struct {
	Roles []participant.Role
}

// SetProgramPauseHandler handles the SetProgramPauseCommand.
type SetProgramPauseHandler struct {
	participants   participant.Repository
	eventPublisher shared.EventPublisher
}

// NewSetProgramPauseHandler creates a new SetProgramPauseHandler.
func NewSetProgramPauseHandler(participants participant.Repository, eventPublisher shared.EventPublisher) *SetProgramPauseHandler {
	return &SetProgramPauseHandler{
		participants:   participants,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the pause change.
func (h *SetProgramPauseHandler) Handle(ctx context.Context, cmd SetProgramPauseCommand) (*SetProgramPauseResult, error) {
	if err := validateCommand("SetProgramPause", cmd); err != nil {
		return nil, fmt.Errorf("set_program_pause: %w", err)
	}
	program, err := participant.ParseProgram(cmd.Program)
	if err != nil {
		return nil, fmt.Errorf("set_program_pause: %w", err)
	}

	p, err := h.participants.GetByID(ctx, participant.ParticipantID(cmd.ParticipantID))
	if err != nil {
		return nil, fmt.Errorf("set_program_pause: load: %w", asStorageError(err))
	}

	roles := p.Roles()
	if cmd.Role != "" {
		role, _ := participant.ParseRole(cmd.Role)
		roles = []participant.Role{role}
	}

	result := &SetProgramPauseResult{}
	for _, role := range roles {
		if err := p.SetPaused(role, program, cmd.Paused); err != nil {
			if cmd.Role != "" {
				return nil, fmt.Errorf("set_program_pause: %s %s: %w", role, program, err)
			}
			continue
		}
		result.Roles = append(result.Roles, role)
	}
	if len(result.Roles) == 0 {
		return nil, fmt.Errorf("set_program_pause: %s: %w", program, participant.ErrProgramNotActive)
	}

	if err := h.participants.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("set_program_pause: save: %w", asStorageError(err))
	}

	if h.eventPublisher != nil {
		for _, role := range result.Roles {
			event := shared.NewProgramPauseChangedEvent(p.ID.String(), role.String(), program.String(), cmd.Paused)
			_ = h.eventPublisher.Publish(withCorrelation(event, cmd.CorrelationID))
		}
	}
	return result, nil
}
