// Package memory implements the engine's repositories in process memory.
// It backs single-instance deployments (storage.backend=memory) and tests.
// Every map is guarded by a mutex, so uniqueness holds the same way a
// database constraint would hold it.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

type storedEdge struct {
	edge social.InterestEdge
	seq  uint64
}

// EdgeRepository implements social.EdgeRepository.
type EdgeRepository struct {
	mu    sync.RWMutex
	edges map[social.EdgeKey]storedEdge
	seq   uint64
}

// NewEdgeRepository creates an empty edge store.
func NewEdgeRepository() *EdgeRepository {
	return &EdgeRepository{edges: make(map[social.EdgeKey]storedEdge)}
}

// Upsert inserts the edge if its 4-tuple is absent.
func (r *EdgeRepository) Upsert(ctx context.Context, edge *social.InterestEdge) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := edge.Key()
	if _, ok := r.edges[key]; ok {
		return false, nil
	}
	r.seq++
	r.edges[key] = storedEdge{edge: *edge, seq: r.seq}
	return true, nil
}

// Delete removes the edge and reports whether it existed.
func (r *EdgeRepository) Delete(ctx context.Context, key social.EdgeKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.edges[key]; !ok {
		return false, nil
	}
	delete(r.edges, key)
	return true, nil
}

// Exists checks whether the edge is live.
func (r *EdgeRepository) Exists(ctx context.Context, key social.EdgeKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.edges[key]
	return ok, nil
}

// FindReciprocal returns the reverse edge or nil.
func (r *EdgeRepository) FindReciprocal(ctx context.Context, key social.EdgeKey) (*social.InterestEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.edges[key.Reverse()]
	if !ok {
		return nil, nil
	}
	edge := stored.edge
	return &edge, nil
}

// CountBetween counts edges in both directions across programs.
func (r *EdgeRepository) CountBetween(ctx context.Context, a, b participant.ParticipantID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for key := range r.edges {
		if (key.Liker == a && key.Likee == b) || (key.Liker == b && key.Likee == a) {
			n++
		}
	}
	return n, nil
}

// MutualProgramsBetween returns the programs with reciprocal edges of the same category.
func (r *EdgeRepository) MutualProgramsBetween(ctx context.Context, a, b participant.ParticipantID) ([]participant.Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var programs []participant.Program
	for key := range r.edges {
		if key.Liker != a || key.Likee != b {
			continue
		}
		if _, ok := r.edges[key.Reverse()]; ok {
			programs = append(programs, key.Program)
		}
	}
	return canonical(programs), nil
}

// ListByLiker returns outgoing edges, newest first.
func (r *EdgeRepository) ListByLiker(ctx context.Context, liker participant.ParticipantID, opts social.ListOptions) ([]*social.InterestEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var found []storedEdge
	for key, stored := range r.edges {
		if key.Liker != liker {
			continue
		}
		if opts.Program != "" && key.Program != opts.Program {
			continue
		}
		found = append(found, stored)
	}
	r.mu.RUnlock()

	sort.Slice(found, func(i, j int) bool {
		if !found[i].edge.CreatedAt.Equal(found[j].edge.CreatedAt) {
			return found[i].edge.CreatedAt.After(found[j].edge.CreatedAt)
		}
		return found[i].seq > found[j].seq
	})

	out := make([]*social.InterestEdge, 0, len(found))
	for _, stored := range page(found, opts) {
		edge := stored.edge
		out = append(out, &edge)
	}
	return out, nil
}

// ListMutualPairs returns pairs with reciprocal edges of the same program and category.
func (r *EdgeRepository) ListMutualPairs(ctx context.Context, opts social.ListOptions) ([]social.MutualPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	programs := make(map[social.PairKey][]participant.Program)
	for key := range r.edges {
		if key.Liker > key.Likee {
			continue
		}
		if opts.Program != "" && key.Program != opts.Program {
			continue
		}
		if _, ok := r.edges[key.Reverse()]; !ok {
			continue
		}
		pk, err := key.PairKey()
		if err != nil {
			continue
		}
		programs[pk] = append(programs[pk], key.Program)
	}
	r.mu.RUnlock()

	keys := make([]social.PairKey, 0, len(programs))
	for pk := range programs {
		keys = append(keys, pk)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]social.MutualPair, 0, len(keys))
	for _, pk := range page(keys, opts) {
		out = append(out, social.MutualPair{PairKey: pk, Programs: canonical(programs[pk])})
	}
	return out, nil
}

// ListPairsWithEdges returns every pair key with at least one live edge.
func (r *EdgeRepository) ListPairsWithEdges(ctx context.Context, opts social.ListOptions) ([]social.PairKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	set := make(map[social.PairKey]struct{})
	for key := range r.edges {
		if pk, err := key.PairKey(); err == nil {
			set[pk] = struct{}{}
		}
	}
	r.mu.RUnlock()

	keys := make([]social.PairKey, 0, len(set))
	for pk := range set {
		keys = append(keys, pk)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return page(keys, opts), nil
}

// Len returns the number of live edges.
func (r *EdgeRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.edges)
}

func page[T any](items []T, opts social.ListOptions) []T {
	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(items) {
		start = len(items)
	}
	end := len(items)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return items[start:end]
}

func canonical(programs []participant.Program) []participant.Program {
	seen := make(map[participant.Program]bool, len(programs))
	for _, p := range programs {
		seen[p] = true
	}
	out := make([]participant.Program, 0, len(seen))
	for _, p := range participant.AllPrograms() {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}
