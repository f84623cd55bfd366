package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/notification"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/persistence/memory"
)

// unreachableCache points at a port nothing listens on.
func unreachableCache(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "participant:p-1", ParticipantKey("p-1"))
	assert.Equal(t, "lock:reconcile", LockKey("reconcile"))
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
}

func TestCache_RejectsBadArguments(t *testing.T) {
	ctx := context.Background()
	c := unreachableCache(t)

	assert.ErrorIs(t, c.Set(ctx, "", "v", time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", "v", -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Get(ctx, "", new(string)), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.DeleteByPattern(ctx, ""), ErrCacheKeyEmpty)
	_, err := c.Publish(ctx, "", "v")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)

	_, err = c.TryLock(ctx, "reconcile", "token", 0)
	assert.ErrorIs(t, err, ErrCacheInvalidTTL)
	assert.NoError(t, c.Delete(ctx))
}

func TestParticipantCache_DegradesToStoreWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	store := memory.NewParticipantRepository()

	p, err := participant.NewParticipant(participant.NewParticipantParams{
		ID: "cand-1",
		Candidate: &participant.CandidateProfile{
			Programs: participant.Programs{participant.ProgramHaven: {Enabled: true}},
			Age:      24,
		},
	})
	require.NoError(t, err)

	cached := NewParticipantCache(store, unreachableCache(t), 0, zerolog.Nop())
	require.NoError(t, cached.Save(ctx, p))

	got, err := cached.GetByID(ctx, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, 24, got.Candidate.Age)

	_, err = cached.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, participant.ErrParticipantNotFound)

	active, err := cached.ListActiveInProgram(ctx, participant.RoleCandidate, participant.ProgramHaven)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestNotifier_SendReportsFailures(t *testing.T) {
	ctx := context.Background()
	n := NewNotifier(unreachableCache(t), "", zerolog.Nop())
	msg := &notification.MatchNotification{Recipient: "alice", Counterpart: "bob", PairKey: "alice:bob"}

	result, err := n.Send(ctx, msg)
	assert.ErrorIs(t, err, notification.ErrDeliveryFailed)
	assert.False(t, result.Success)
	assert.Equal(t, notification.ChannelTypePubSub, result.Channel)

	msg.Report = map[string]interface{}{"bad": make(chan int)}
	_, err = n.Send(ctx, msg)
	assert.ErrorIs(t, err, ErrCacheSerialization)
	assert.NotErrorIs(t, err, notification.ErrDeliveryFailed)
}
