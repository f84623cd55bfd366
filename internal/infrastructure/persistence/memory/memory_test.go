package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

func edge(t *testing.T, liker, likee string, program participant.Program, category string) *social.InterestEdge {
	t.Helper()
	e, err := social.NewInterestEdge(social.NewInterestEdgeParams{
		ID: liker + ">" + likee + ">" + string(program) + ">" + category,
		Key: social.EdgeKey{
			Liker:    participant.ParticipantID(liker),
			Likee:    participant.ParticipantID(likee),
			Program:  program,
			Category: social.Category(category),
		},
	})
	require.NoError(t, err)
	return e
}

func TestEdgeRepository_UpsertIsInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewEdgeRepository()
	e := edge(t, "a", "b", participant.ProgramConnect, "general")

	created, err := repo.Upsert(ctx, e)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Upsert(ctx, e)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, repo.Len())
}

func TestEdgeRepository_ConcurrentUpsertCreatesOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewEdgeRepository()

	e := edge(t, "a", "b", participant.ProgramConnect, "general")

	var created int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Upsert(ctx, e)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&created, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created)
	assert.Equal(t, 1, repo.Len())
}

func TestEdgeRepository_DeleteAndCount(t *testing.T) {
	ctx := context.Background()
	repo := NewEdgeRepository()

	for _, e := range []*social.InterestEdge{
		edge(t, "a", "b", participant.ProgramConnect, "general"),
		edge(t, "b", "a", participant.ProgramHaven, "general"),
		edge(t, "a", "c", participant.ProgramConnect, "general"),
	} {
		_, err := repo.Upsert(ctx, e)
		require.NoError(t, err)
	}

	n, err := repo.CountBetween(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	existed, err := repo.Delete(ctx, social.EdgeKey{Liker: "a", Likee: "b", Program: participant.ProgramConnect, Category: "general"})
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = repo.Delete(ctx, social.EdgeKey{Liker: "a", Likee: "b", Program: participant.ProgramConnect, Category: "general"})
	require.NoError(t, err)
	assert.False(t, existed)

	n, err = repo.CountBetween(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEdgeRepository_FindReciprocalMatchesProgramAndCategory(t *testing.T) {
	ctx := context.Background()
	repo := NewEdgeRepository()
	forward := edge(t, "a", "b", participant.ProgramConnect, "general")

	_, err := repo.Upsert(ctx, edge(t, "b", "a", participant.ProgramConnect, "other"))
	require.NoError(t, err)

	got, err := repo.FindReciprocal(ctx, forward.Key())
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = repo.Upsert(ctx, edge(t, "b", "a", participant.ProgramConnect, "general"))
	require.NoError(t, err)

	got, err = repo.FindReciprocal(ctx, forward.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, participant.ParticipantID("b"), got.Liker)
}

func TestEdgeRepository_ListByLikerNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewEdgeRepository()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, likee := range []string{"b", "c", "d"} {
		e := edge(t, "a", likee, participant.ProgramConnect, "general")
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := repo.Upsert(ctx, e)
		require.NoError(t, err)
	}
	_, err := repo.Upsert(ctx, edge(t, "a", "e", participant.ProgramLink, "general"))
	require.NoError(t, err)

	got, err := repo.ListByLiker(ctx, "a", social.ListOptions{Program: participant.ProgramConnect, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, participant.ParticipantID("d"), got[0].Likee)
	assert.Equal(t, participant.ParticipantID("c"), got[1].Likee)
}

func TestEdgeRepository_ListMutualPairs(t *testing.T) {
	ctx := context.Background()
	repo := NewEdgeRepository()

	for _, e := range []*social.InterestEdge{
		edge(t, "a", "b", participant.ProgramHaven, "general"),
		edge(t, "b", "a", participant.ProgramHaven, "general"),
		edge(t, "a", "b", participant.ProgramConnect, "general"),
		edge(t, "b", "a", participant.ProgramConnect, "general"),
		edge(t, "c", "a", participant.ProgramConnect, "general"),
	} {
		_, err := repo.Upsert(ctx, e)
		require.NoError(t, err)
	}

	pairs, err := repo.ListMutualPairs(ctx, social.ListOptions{})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, social.PairKey("a:b"), pairs[0].PairKey)
	assert.Equal(t, []participant.Program{participant.ProgramConnect, participant.ProgramHaven}, pairs[0].Programs)

	keys, err := repo.ListPairsWithEdges(ctx, social.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []social.PairKey{"a:b", "a:c"}, keys)
}

func TestConnectionRepository_UpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository()

	conn, err := social.NewConnection(social.NewConnectionParams{PairKey: "a:b", Report: social.EmptyReport()})
	require.NoError(t, err)
	original := conn.CreatedAt

	created, err := repo.Upsert(ctx, conn)
	require.NoError(t, err)
	assert.True(t, created)

	next := conn.Clone()
	next.CreatedAt = original.Add(time.Hour)
	next.Report.MatchPercentage = 44
	created, err = repo.Upsert(ctx, next)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.Find(ctx, "a:b")
	require.NoError(t, err)
	assert.True(t, original.Equal(got.CreatedAt))
	assert.Equal(t, 44, got.Report.MatchPercentage)
	assert.Equal(t, 1, repo.Len())
}

func TestEdgeRepository_MutualProgramsBetween(t *testing.T) {
	ctx := context.Background()
	repo := NewEdgeRepository()

	for _, e := range []*social.InterestEdge{
		edge(t, "a", "b", participant.ProgramHaven, "general"),
		edge(t, "b", "a", participant.ProgramHaven, "general"),
		edge(t, "a", "b", participant.ProgramConnect, "general"),
		edge(t, "b", "a", participant.ProgramConnect, "other"),
	} {
		_, err := repo.Upsert(ctx, e)
		require.NoError(t, err)
	}

	programs, err := repo.MutualProgramsBetween(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, []participant.Program{participant.ProgramHaven}, programs)

	_, err = repo.Delete(ctx, edge(t, "b", "a", participant.ProgramHaven, "general").Key())
	require.NoError(t, err)
	programs, err = repo.MutualProgramsBetween(ctx, "a", "b")
	require.NoError(t, err)
	assert.Empty(t, programs)
}

func TestConnectionRepository_ConcurrentUpsertsMergePrograms(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository()

	var wg sync.WaitGroup
	for _, program := range []participant.Program{participant.ProgramConnect, participant.ProgramHaven, participant.ProgramLink} {
		wg.Add(1)
		go func(program participant.Program) {
			defer wg.Done()
			conn, err := social.NewConnection(social.NewConnectionParams{
				PairKey:  "a:b",
				Report:   social.EmptyReport(),
				Programs: []participant.Program{program},
			})
			assert.NoError(t, err)
			_, err = repo.Upsert(ctx, conn)
			assert.NoError(t, err)
		}(program)
	}
	wg.Wait()

	got, err := repo.Find(ctx, "a:b")
	require.NoError(t, err)
	assert.Equal(t, participant.AllPrograms(), got.Programs)
	assert.Equal(t, 1, repo.Len())
}

func TestConnectionRepository_SetPrograms(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository()

	existed, err := repo.SetPrograms(ctx, "a:b", nil)
	require.NoError(t, err)
	assert.False(t, existed)

	conn, err := social.NewConnection(social.NewConnectionParams{
		PairKey:  "a:b",
		Report:   social.EmptyReport(),
		Programs: []participant.Program{participant.ProgramConnect, participant.ProgramHaven},
	})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, conn)
	require.NoError(t, err)

	existed, err = repo.SetPrograms(ctx, "a:b", []participant.Program{participant.ProgramConnect})
	require.NoError(t, err)
	assert.True(t, existed)

	got, err := repo.Find(ctx, "a:b")
	require.NoError(t, err)
	assert.Equal(t, []participant.Program{participant.ProgramConnect}, got.Programs)
}

func TestConnectionRepository_RemoveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository()

	_, err := repo.Find(ctx, "a:b")
	assert.ErrorIs(t, err, social.ErrConnectionNotFound)

	existed, err := repo.Remove(ctx, "a:b")
	require.NoError(t, err)
	assert.False(t, existed)

	conn, err := social.NewConnection(social.NewConnectionParams{PairKey: "a:b", Report: social.EmptyReport()})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, conn)
	require.NoError(t, err)

	list, err := repo.ListForParticipant(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	existed, err = repo.Remove(ctx, "a:b")
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestConnectionRepository_FindReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository()

	conn, err := social.NewConnection(social.NewConnectionParams{PairKey: "a:b", Report: social.EmptyReport()})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, conn)
	require.NoError(t, err)

	got, err := repo.Find(ctx, "a:b")
	require.NoError(t, err)
	got.Report.SharedLanguages = append(got.Report.SharedLanguages, "English")

	again, err := repo.Find(ctx, "a:b")
	require.NoError(t, err)
	assert.Empty(t, again.Report.SharedLanguages)
}

func TestParticipantRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewParticipantRepository()

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, participant.ErrParticipantNotFound)

	host, err := participant.NewParticipant(participant.NewParticipantParams{
		ID: "host-1",
		Host: &participant.HostProfile{
			Programs: participant.Programs{participant.ProgramConnect: {Enabled: true}},
		},
	})
	require.NoError(t, err)
	paused, err := participant.NewParticipant(participant.NewParticipantParams{
		ID: "host-2",
		Host: &participant.HostProfile{
			Programs: participant.Programs{participant.ProgramConnect: {Enabled: true, Paused: true}},
		},
	})
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, host))
	require.NoError(t, repo.Save(ctx, paused))

	got, err := repo.GetByID(ctx, "host-1")
	require.NoError(t, err)
	require.NotNil(t, got.Host)
	assert.NotNil(t, got.Host.Pets)

	got.Host.Pets = append(got.Host.Pets, "cat")
	again, err := repo.GetByID(ctx, "host-1")
	require.NoError(t, err)
	assert.Empty(t, again.Host.Pets)

	active, err := repo.ListActiveInProgram(ctx, participant.RoleHost, participant.ProgramConnect)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, participant.ParticipantID("host-1"), active[0].ID)
}

func TestBlockRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBlockRepository()

	assert.ErrorIs(t, repo.Block(ctx, "a", "a"), shared.ErrSelfBlock)

	require.NoError(t, repo.Block(ctx, "a", "b"))
	require.NoError(t, repo.Block(ctx, "c", "a"))

	blocked, err := repo.IsBlocked(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, blocked)

	list, err := repo.ListBlocked(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []participant.ParticipantID{"b", "c"}, list)

	require.NoError(t, repo.Unblock(ctx, "a", "b"))
	blocked, err = repo.IsBlocked(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestRepositories_HonorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEdgeRepository().Exists(ctx, social.EdgeKey{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewConnectionRepository().Find(ctx, "a:b")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewParticipantRepository().GetByID(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
