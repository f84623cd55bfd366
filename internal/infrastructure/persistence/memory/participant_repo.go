package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
)

// ParticipantRepository implements participant.Repository.
// Stored values are deep copies, so callers never share nested slices with the store.
type ParticipantRepository struct {
	mu           sync.RWMutex
	participants map[participant.ParticipantID][]byte
}

// NewParticipantRepository creates an empty profile store.
func NewParticipantRepository() *ParticipantRepository {
	return &ParticipantRepository{participants: make(map[participant.ParticipantID][]byte)}
}

// GetByID returns a normalized copy of the participant.
func (r *ParticipantRepository) GetByID(ctx context.Context, id participant.ParticipantID) (*participant.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	data, ok := r.participants[id]
	r.mu.RUnlock()
	if !ok {
		return nil, participant.ErrParticipantNotFound
	}
	return decodeParticipant(data)
}

// Save creates or replaces the participant.
func (r *ParticipantRepository) Save(ctx context.Context, p *participant.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode participant: %w", err)
	}
	r.mu.Lock()
	r.participants[p.ID] = data
	r.mu.Unlock()
	return nil
}

// ListActiveInProgram returns participants whose role is active in the program, ordered by ID.
func (r *ParticipantRepository) ListActiveInProgram(ctx context.Context, role participant.Role, program participant.Program) ([]*participant.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	snapshot := make([][]byte, 0, len(r.participants))
	for _, data := range r.participants {
		snapshot = append(snapshot, data)
	}
	r.mu.RUnlock()

	out := []*participant.Participant{}
	for _, data := range snapshot {
		p, err := decodeParticipant(data)
		if err != nil {
			return nil, err
		}
		if p.IsRoleActive(role, program) {
			out = append(out, p)
		}
	}
	participant.SortByID(out)
	return out, nil
}

func decodeParticipant(data []byte) (*participant.Participant, error) {
	var p participant.Participant
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, shared.WrapError("participant", "Decode", shared.ErrInvalidFormat, "corrupt participant record", err)
	}
	p.Normalize()
	return &p, nil
}

// BlockRepository implements participant.BlockRepository.
type BlockRepository struct {
	mu     sync.RWMutex
	blocks map[participant.ParticipantID]map[participant.ParticipantID]struct{}
}

// NewBlockRepository creates an empty block store.
func NewBlockRepository() *BlockRepository {
	return &BlockRepository{blocks: make(map[participant.ParticipantID]map[participant.ParticipantID]struct{})}
}

// Block records that blocker blocked target.
func (r *BlockRepository) Block(ctx context.Context, blocker, target participant.ParticipantID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if blocker == target {
		return shared.ErrSelfBlock
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.blocks[blocker]
	if !ok {
		set = make(map[participant.ParticipantID]struct{})
		r.blocks[blocker] = set
	}
	set[target] = struct{}{}
	return nil
}

// Unblock removes the block if present.
func (r *BlockRepository) Unblock(ctx context.Context, blocker, target participant.ParticipantID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.blocks[blocker], target)
	return nil
}

// IsBlocked checks both directions.
func (r *BlockRepository) IsBlocked(ctx context.Context, a, b participant.ParticipantID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ab := r.blocks[a][b]
	_, ba := r.blocks[b][a]
	return ab || ba, nil
}

// ListBlocked returns everyone blocked by or blocking id.
func (r *BlockRepository) ListBlocked(ctx context.Context, id participant.ParticipantID) ([]participant.ParticipantID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	set := make(map[participant.ParticipantID]struct{})
	for target := range r.blocks[id] {
		set[target] = struct{}{}
	}
	for blocker, targets := range r.blocks {
		if _, ok := targets[id]; ok {
			set[blocker] = struct{}{}
		}
	}
	r.mu.RUnlock()

	out := make([]participant.ParticipantID, 0, len(set))
	for other := range set {
		out = append(out, other)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
