package command

import (
	"context"
	"fmt"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BLOCK / UNBLOCK PARTICIPANT COMMANDS
// Blocks only exclude participants from each other's candidate pools.
// Existing edges and connections are left untouched.
// ══════════════════════════════════════════════════════════════════════════════

// BlockParticipantCommand contains the data to block or unblock a participant.
type BlockParticipantCommand struct {
	// BlockerID is the participant issuing the block.
	BlockerID string `validate:"required,notblank,max=128"`

	// TargetID is the participant being blocked.
	TargetID string `validate:"required,notblank,max=128"`

	// Unblock removes the block instead of adding it.
	Unblock bool
}

// BlockParticipantHandler handles the BlockParticipantCommand.
type BlockParticipantHandler struct {
	participants participant.Repository
	blocks       participant.BlockRepository
}

// NewBlockParticipantHandler creates a new BlockParticipantHandler.
func NewBlockParticipantHandler(participants participant.Repository, blocks participant.BlockRepository) *BlockParticipantHandler {
	return &BlockParticipantHandler{
		participants: participants,
		blocks:       blocks,
	}
}

// Handle executes the block or unblock.
func (h *BlockParticipantHandler) Handle(ctx context.Context, cmd BlockParticipantCommand) error {
	if err := validateCommand("BlockParticipant", cmd); err != nil {
		return fmt.Errorf("block_participant: %w", err)
	}
	if cmd.BlockerID == cmd.TargetID {
		return shared.ErrSelfBlock
	}

	blocker := participant.ParticipantID(cmd.BlockerID)
	target := participant.ParticipantID(cmd.TargetID)

	if cmd.Unblock {
		if err := h.blocks.Unblock(ctx, blocker, target); err != nil {
			return fmt.Errorf("block_participant: unblock: %w", asStorageError(err))
		}
		return nil
	}

	for _, id := range []participant.ParticipantID{blocker, target} {
		if _, err := h.participants.GetByID(ctx, id); err != nil {
			return fmt.Errorf("block_participant: load %s: %w", id, asStorageError(err))
		}
	}

	if err := h.blocks.Block(ctx, blocker, target); err != nil {
		return fmt.Errorf("block_participant: block: %w", asStorageError(err))
	}
	return nil
}
