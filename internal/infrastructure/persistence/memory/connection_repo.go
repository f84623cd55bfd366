package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

// ConnectionRepository implements social.ConnectionRepository.
type ConnectionRepository struct {
	mu    sync.RWMutex
	conns map[social.PairKey]*social.Connection
}

// NewConnectionRepository creates an empty connection store.
func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{conns: make(map[social.PairKey]*social.Connection)}
}

// Upsert inserts the connection, or replaces its report and merges its
// programs into the stored ones under the write lock.
func (r *ConnectionRepository) Upsert(ctx context.Context, conn *social.Connection) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.conns[conn.PairKey]
	if !ok {
		r.conns[conn.PairKey] = conn.Clone()
		return true, nil
	}
	existing.Merge(conn)
	return false, nil
}

// SetPrograms overwrites the programs of an existing connection.
func (r *ConnectionRepository) SetPrograms(ctx context.Context, key social.PairKey, programs []participant.Program) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.conns[key]
	if !ok {
		return false, nil
	}
	existing.SetPrograms(programs)
	return true, nil
}

// Remove deletes the connection if present.
func (r *ConnectionRepository) Remove(ctx context.Context, key social.PairKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[key]; !ok {
		return false, nil
	}
	delete(r.conns, key)
	return true, nil
}

// Find returns the connection or social.ErrConnectionNotFound.
func (r *ConnectionRepository) Find(ctx context.Context, key social.PairKey) (*social.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[key]
	if !ok {
		return nil, social.ErrConnectionNotFound
	}
	return conn.Clone(), nil
}

// ListForParticipant returns the participant's connections, newest first.
func (r *ConnectionRepository) ListForParticipant(ctx context.Context, id participant.ParticipantID) ([]*social.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []*social.Connection{}
	for key, conn := range r.conns {
		if key.Involves(id) {
			out = append(out, conn.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].PairKey < out[j].PairKey
	})
	return out, nil
}

// ListPairKeys returns every connection key in order.
func (r *ConnectionRepository) ListPairKeys(ctx context.Context, opts social.ListOptions) ([]social.PairKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	keys := make([]social.PairKey, 0, len(r.conns))
	for key := range r.conns {
		keys = append(keys, key)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return page(keys, opts), nil
}

// Len returns the number of stored connections.
func (r *ConnectionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
