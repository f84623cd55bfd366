package redis

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
)

// ParticipantCache is a read-through cache in front of participant.Repository.
// Cache failures degrade to the underlying store; they never fail a read.
type ParticipantCache struct {
	inner  participant.Repository
	cache  *Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewParticipantCache wraps inner with a Redis cache.
func NewParticipantCache(inner participant.Repository, cache *Cache, ttl time.Duration, logger zerolog.Logger) *ParticipantCache {
	if ttl <= 0 {
		ttl = TTLParticipantCache
	}
	return &ParticipantCache{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "participant_cache").Logger(),
	}
}

// GetByID returns the cached participant or loads it from the store.
func (c *ParticipantCache) GetByID(ctx context.Context, id participant.ParticipantID) (*participant.Participant, error) {
	key := ParticipantKey(string(id))

	var cached participant.Participant
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		cached.Normalize()
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn().Err(err).Str("participant_id", string(id)).Msg("cache read failed")
	}

	p, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, p, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("participant_id", string(id)).Msg("cache write failed")
	}
	return p, nil
}

// Save writes through to the store and drops the cached copy.
func (c *ParticipantCache) Save(ctx context.Context, p *participant.Participant) error {
	if err := c.inner.Save(ctx, p); err != nil {
		return err
	}
	if err := c.cache.Delete(ctx, ParticipantKey(string(p.ID))); err != nil {
		c.logger.Warn().Err(err).Str("participant_id", string(p.ID)).Msg("cache invalidation failed")
	}
	return nil
}

// ListActiveInProgram is not cached.
func (c *ParticipantCache) ListActiveInProgram(ctx context.Context, role participant.Role, program participant.Program) ([]*participant.Participant, error) {
	return c.inner.ListActiveInProgram(ctx, role, program)
}

// InvalidateAll clears every cached profile.
func (c *ParticipantCache) InvalidateAll(ctx context.Context) error {
	return c.cache.DeleteByPattern(ctx, PrefixParticipant+"*")
}
