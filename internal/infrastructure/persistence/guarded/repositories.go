package guarded

import (
	"context"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// EDGES
// ══════════════════════════════════════════════════════════════════════════════

// EdgeRepository guards a social.EdgeRepository.
type EdgeRepository struct {
	inner social.EdgeRepository
	guard *Guard
}

var _ social.EdgeRepository = (*EdgeRepository)(nil)

// NewEdgeRepository wraps inner.
func NewEdgeRepository(inner social.EdgeRepository, guard *Guard) *EdgeRepository {
	return &EdgeRepository{inner: inner, guard: guard}
}

func (r *EdgeRepository) Upsert(ctx context.Context, edge *social.InterestEdge) (bool, error) {
	return call(ctx, r.guard, "edges.upsert", func(ctx context.Context) (bool, error) {
		return r.inner.Upsert(ctx, edge)
	})
}

func (r *EdgeRepository) Delete(ctx context.Context, key social.EdgeKey) (bool, error) {
	return call(ctx, r.guard, "edges.delete", func(ctx context.Context) (bool, error) {
		return r.inner.Delete(ctx, key)
	})
}

func (r *EdgeRepository) Exists(ctx context.Context, key social.EdgeKey) (bool, error) {
	return call(ctx, r.guard, "edges.exists", func(ctx context.Context) (bool, error) {
		return r.inner.Exists(ctx, key)
	})
}

func (r *EdgeRepository) FindReciprocal(ctx context.Context, key social.EdgeKey) (*social.InterestEdge, error) {
	return call(ctx, r.guard, "edges.find_reciprocal", func(ctx context.Context) (*social.InterestEdge, error) {
		return r.inner.FindReciprocal(ctx, key)
	})
}

func (r *EdgeRepository) CountBetween(ctx context.Context, a, b participant.ParticipantID) (int, error) {
	return call(ctx, r.guard, "edges.count_between", func(ctx context.Context) (int, error) {
		return r.inner.CountBetween(ctx, a, b)
	})
}

func (r *EdgeRepository) MutualProgramsBetween(ctx context.Context, a, b participant.ParticipantID) ([]participant.Program, error) {
	return call(ctx, r.guard, "edges.mutual_programs", func(ctx context.Context) ([]participant.Program, error) {
		return r.inner.MutualProgramsBetween(ctx, a, b)
	})
}

func (r *EdgeRepository) ListByLiker(ctx context.Context, liker participant.ParticipantID, opts social.ListOptions) ([]*social.InterestEdge, error) {
	return call(ctx, r.guard, "edges.list_by_liker", func(ctx context.Context) ([]*social.InterestEdge, error) {
		return r.inner.ListByLiker(ctx, liker, opts)
	})
}

func (r *EdgeRepository) ListMutualPairs(ctx context.Context, opts social.ListOptions) ([]social.MutualPair, error) {
	return call(ctx, r.guard, "edges.list_mutual_pairs", func(ctx context.Context) ([]social.MutualPair, error) {
		return r.inner.ListMutualPairs(ctx, opts)
	})
}

func (r *EdgeRepository) ListPairsWithEdges(ctx context.Context, opts social.ListOptions) ([]social.PairKey, error) {
	return call(ctx, r.guard, "edges.list_pairs", func(ctx context.Context) ([]social.PairKey, error) {
		return r.inner.ListPairsWithEdges(ctx, opts)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTIONS
// ══════════════════════════════════════════════════════════════════════════════

// ConnectionRepository guards a social.ConnectionRepository.
type ConnectionRepository struct {
	inner social.ConnectionRepository
	guard *Guard
}

var _ social.ConnectionRepository = (*ConnectionRepository)(nil)

// NewConnectionRepository wraps inner.
func NewConnectionRepository(inner social.ConnectionRepository, guard *Guard) *ConnectionRepository {
	return &ConnectionRepository{inner: inner, guard: guard}
}

func (r *ConnectionRepository) Upsert(ctx context.Context, conn *social.Connection) (bool, error) {
	return call(ctx, r.guard, "connections.upsert", func(ctx context.Context) (bool, error) {
		return r.inner.Upsert(ctx, conn)
	})
}

func (r *ConnectionRepository) SetPrograms(ctx context.Context, key social.PairKey, programs []participant.Program) (bool, error) {
	return call(ctx, r.guard, "connections.set_programs", func(ctx context.Context) (bool, error) {
		return r.inner.SetPrograms(ctx, key, programs)
	})
}

func (r *ConnectionRepository) Remove(ctx context.Context, key social.PairKey) (bool, error) {
	return call(ctx, r.guard, "connections.remove", func(ctx context.Context) (bool, error) {
		return r.inner.Remove(ctx, key)
	})
}

func (r *ConnectionRepository) Find(ctx context.Context, key social.PairKey) (*social.Connection, error) {
	return call(ctx, r.guard, "connections.find", func(ctx context.Context) (*social.Connection, error) {
		return r.inner.Find(ctx, key)
	})
}

func (r *ConnectionRepository) ListForParticipant(ctx context.Context, id participant.ParticipantID) ([]*social.Connection, error) {
	return call(ctx, r.guard, "connections.list_for_participant", func(ctx context.Context) ([]*social.Connection, error) {
		return r.inner.ListForParticipant(ctx, id)
	})
}

func (r *ConnectionRepository) ListPairKeys(ctx context.Context, opts social.ListOptions) ([]social.PairKey, error) {
	return call(ctx, r.guard, "connections.list_pair_keys", func(ctx context.Context) ([]social.PairKey, error) {
		return r.inner.ListPairKeys(ctx, opts)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPANTS
// ══════════════════════════════════════════════════════════════════════════════

// ParticipantRepository guards a participant.Repository.
type ParticipantRepository struct {
	inner participant.Repository
	guard *Guard
}

var _ participant.Repository = (*ParticipantRepository)(nil)

// NewParticipantRepository wraps inner.
func NewParticipantRepository(inner participant.Repository, guard *Guard) *ParticipantRepository {
	return &ParticipantRepository{inner: inner, guard: guard}
}

func (r *ParticipantRepository) GetByID(ctx context.Context, id participant.ParticipantID) (*participant.Participant, error) {
	return call(ctx, r.guard, "participants.get", func(ctx context.Context) (*participant.Participant, error) {
		return r.inner.GetByID(ctx, id)
	})
}

func (r *ParticipantRepository) Save(ctx context.Context, p *participant.Participant) error {
	return exec(ctx, r.guard, "participants.save", func(ctx context.Context) error {
		return r.inner.Save(ctx, p)
	})
}

func (r *ParticipantRepository) ListActiveInProgram(ctx context.Context, role participant.Role, program participant.Program) ([]*participant.Participant, error) {
	return call(ctx, r.guard, "participants.list_active", func(ctx context.Context) ([]*participant.Participant, error) {
		return r.inner.ListActiveInProgram(ctx, role, program)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// BLOCKS
// ══════════════════════════════════════════════════════════════════════════════

// BlockRepository guards a participant.BlockRepository.
type BlockRepository struct {
	inner participant.BlockRepository
	guard *Guard
}

var _ participant.BlockRepository = (*BlockRepository)(nil)

// NewBlockRepository wraps inner.
func NewBlockRepository(inner participant.BlockRepository, guard *Guard) *BlockRepository {
	return &BlockRepository{inner: inner, guard: guard}
}

func (r *BlockRepository) Block(ctx context.Context, blocker, target participant.ParticipantID) error {
	return exec(ctx, r.guard, "blocks.block", func(ctx context.Context) error {
		return r.inner.Block(ctx, blocker, target)
	})
}

func (r *BlockRepository) Unblock(ctx context.Context, blocker, target participant.ParticipantID) error {
	return exec(ctx, r.guard, "blocks.unblock", func(ctx context.Context) error {
		return r.inner.Unblock(ctx, blocker, target)
	})
}

func (r *BlockRepository) IsBlocked(ctx context.Context, a, b participant.ParticipantID) (bool, error) {
	return call(ctx, r.guard, "blocks.is_blocked", func(ctx context.Context) (bool, error) {
		return r.inner.IsBlocked(ctx, a, b)
	})
}

func (r *BlockRepository) ListBlocked(ctx context.Context, id participant.ParticipantID) ([]participant.ParticipantID, error) {
	return call(ctx, r.guard, "blocks.list", func(ctx context.Context) ([]participant.ParticipantID, error) {
		return r.inner.ListBlocked(ctx, id)
	})
}
