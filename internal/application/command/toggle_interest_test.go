package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

func TestToggleInterest_LikeWithoutReciprocal(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	h := f.toggleHandler(nil)

	res, err := h.Handle(context.Background(), toggle("h1", "c1", participant.ProgramConnect))
	require.NoError(t, err)

	assert.True(t, res.Liked)
	assert.False(t, res.Matched)
	assert.Nil(t, res.Report)
	assert.Equal(t, social.PairKey("c1:h1"), res.PairKey)
	assert.Equal(t, 1, f.edges.Len())
	assert.Equal(t, 0, f.connections.Len())
	assert.Equal(t, []shared.EventType{shared.EventInterestExpressed}, f.events.types())
}

func TestToggleInterest_MutualInterestCreatesConnection(t *testing.T) {
	f := newFixture(t)
	host := f.seedHost(t, "h1")
	candidate := f.seedCandidate(t, "c1")
	h := f.toggleHandler(nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, toggle("h1", "c1", participant.ProgramConnect))
	require.NoError(t, err)

	res, err := h.Handle(ctx, toggle("c1", "h1", participant.ProgramConnect))
	require.NoError(t, err)

	require.True(t, res.Matched)
	require.NotNil(t, res.Report)

	want := social.NewScorer(social.DefaultScoringPolicy()).Score(host, candidate)
	assert.Equal(t, want.MatchPercentage, res.Report.MatchPercentage)

	conn, err := f.connections.Find(ctx, "c1:h1")
	require.NoError(t, err)
	assert.Equal(t, participant.ParticipantID("c1"), conn.ParticipantA)
	assert.Equal(t, participant.ParticipantID("h1"), conn.ParticipantB)
	assert.Equal(t, []participant.Program{participant.ProgramConnect}, conn.Programs)
	assert.Equal(t, want.MatchPercentage, conn.Report.MatchPercentage)

	assert.Equal(t, 1, f.events.count(shared.EventMatchMade))
}

func TestToggleInterest_IsAnInvolution(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	h := f.toggleHandler(nil)
	ctx := context.Background()
	cmd := toggle("h1", "c1", participant.ProgramConnect)

	for i := 0; i < 4; i++ {
		res, err := h.Handle(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, i%2 == 0, res.Liked, "call %d", i+1)
	}

	assert.Equal(t, 0, f.edges.Len())
	assert.Equal(t, 0, f.connections.Len())
	assert.Equal(t, 2, f.events.count(shared.EventInterestExpressed))
	assert.Equal(t, 2, f.events.count(shared.EventInterestWithdrawn))
}

func TestToggleInterest_PairKeyIsSymmetric(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	h := f.toggleHandler(nil)
	ctx := context.Background()

	first, err := h.Handle(ctx, toggle("c1", "h1", participant.ProgramConnect))
	require.NoError(t, err)
	second, err := h.Handle(ctx, toggle("h1", "c1", participant.ProgramConnect))
	require.NoError(t, err)

	assert.Equal(t, first.PairKey, second.PairKey)
	assert.True(t, second.Matched)
	assert.Equal(t, 1, f.connections.Len())
}

func TestToggleInterest_SelfInterestWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	h := f.toggleHandler(nil)

	res, err := h.Handle(context.Background(), toggle("h1", "h1", participant.ProgramConnect))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, social.ErrSelfInterest)
	assert.Equal(t, 0, f.edges.Len())
	assert.Empty(t, f.events.types())
}

func TestToggleInterest_SelfInterestCheckedBeforeValidation(t *testing.T) {
	f := newFixture(t)
	h := f.toggleHandler(nil)

	res, err := h.Handle(context.Background(), ToggleInterestCommand{LikerID: "x1", LikeeID: "x1", Program: "Connect"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, social.ErrSelfInterest)
	assert.NotErrorIs(t, err, shared.ErrValidation)
}

func TestToggleInterest_SimultaneousMutualLikes(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t)
		f.seedHost(t, "h1")
		f.seedCandidate(t, "c1")
		h := f.toggleHandler(nil)

		var (
			wg      sync.WaitGroup
			results [2]*ToggleInterestResult
			errs    [2]error
		)
		for j, cmd := range []ToggleInterestCommand{
			toggle("h1", "c1", participant.ProgramConnect),
			toggle("c1", "h1", participant.ProgramConnect),
		} {
			wg.Add(1)
			go func(j int, cmd ToggleInterestCommand) {
				defer wg.Done()
				results[j], errs[j] = h.Handle(context.Background(), cmd)
			}(j, cmd)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.True(t, results[0].Matched || results[1].Matched, "iteration %d", i)
		assert.Equal(t, 2, f.edges.Len())
		assert.Equal(t, 1, f.connections.Len(), "iteration %d", i)
	}
}

func TestToggleInterest_ConcurrentMatchesKeepEveryProgram(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	h := f.toggleHandler(nil)
	ctx := context.Background()
	programs := []participant.Program{participant.ProgramConnect, participant.ProgramHaven}

	for _, program := range programs {
		_, err := h.Handle(ctx, toggle("h1", "c1", program))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for _, program := range programs {
		wg.Add(1)
		go func(program participant.Program) {
			defer wg.Done()
			res, err := h.Handle(ctx, toggle("c1", "h1", program))
			assert.NoError(t, err)
			assert.True(t, res.Matched)
		}(program)
	}
	wg.Wait()

	conn, err := f.connections.Find(ctx, "c1:h1")
	require.NoError(t, err)
	assert.Equal(t, programs, conn.Programs)
}

func TestToggleInterest_WithdrawalShrinksPrograms(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	h := f.toggleHandler(nil)
	ctx := context.Background()

	for _, program := range []participant.Program{participant.ProgramConnect, participant.ProgramHaven} {
		_, err := h.Handle(ctx, toggle("h1", "c1", program))
		require.NoError(t, err)
		_, err = h.Handle(ctx, toggle("c1", "h1", program))
		require.NoError(t, err)
	}

	_, err := h.Handle(ctx, toggle("h1", "c1", participant.ProgramHaven))
	require.NoError(t, err)
	conn, err := f.connections.Find(ctx, "c1:h1")
	require.NoError(t, err)
	assert.Equal(t, []participant.Program{participant.ProgramConnect}, conn.Programs)

	_, err = h.Handle(ctx, toggle("c1", "h1", participant.ProgramHaven))
	require.NoError(t, err)
	conn, err = f.connections.Find(ctx, "c1:h1")
	require.NoError(t, err)
	assert.Equal(t, []participant.Program{participant.ProgramConnect}, conn.Programs)
}

func TestToggleInterest_OneConnectionAcrossPrograms(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	h := f.toggleHandler(nil)
	ctx := context.Background()

	for _, program := range []participant.Program{participant.ProgramConnect, participant.ProgramHaven} {
		_, err := h.Handle(ctx, toggle("h1", "c1", program))
		require.NoError(t, err)
		res, err := h.Handle(ctx, toggle("c1", "h1", program))
		require.NoError(t, err)
		require.True(t, res.Matched)
	}

	assert.Equal(t, 4, f.edges.Len())
	assert.Equal(t, 1, f.connections.Len())

	conn, err := f.connections.Find(ctx, "c1:h1")
	require.NoError(t, err)
	assert.Equal(t, []participant.Program{participant.ProgramConnect, participant.ProgramHaven}, conn.Programs)
}

func TestToggleInterest_LastWithdrawalRetiresConnection(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	h := f.toggleHandler(nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, toggle("h1", "c1", participant.ProgramConnect))
	require.NoError(t, err)
	_, err = h.Handle(ctx, toggle("c1", "h1", participant.ProgramConnect))
	require.NoError(t, err)
	require.Equal(t, 1, f.connections.Len())

	res, err := h.Handle(ctx, toggle("h1", "c1", participant.ProgramConnect))
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.False(t, res.ConnectionRetired)
	assert.Equal(t, 1, f.connections.Len(), "one edge still links the pair")

	res, err = h.Handle(ctx, toggle("c1", "h1", participant.ProgramConnect))
	require.NoError(t, err)
	assert.True(t, res.ConnectionRetired)
	assert.Equal(t, 0, f.connections.Len())
	assert.Equal(t, 1, f.events.count(shared.EventConnectionRetired))
}

func TestToggleInterest_LikeLikeWithdrawScenario(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	h := f.toggleHandler(nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, toggle("h1", "c1", participant.ProgramConnect))
	require.NoError(t, err)
	matched, err := h.Handle(ctx, toggle("c1", "h1", participant.ProgramConnect))
	require.NoError(t, err)
	require.True(t, matched.Matched)

	withdrawn, err := h.Handle(ctx, toggle("c1", "h1", participant.ProgramConnect))
	require.NoError(t, err)
	assert.False(t, withdrawn.Liked)
	assert.False(t, withdrawn.ConnectionRetired)

	exists, err := f.edges.Exists(ctx, social.EdgeKey{
		Liker: "h1", Likee: "c1", Program: participant.ProgramConnect, Category: "pairConnect",
	})
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, f.connections.Len())

	conn, err := f.connections.Find(ctx, "c1:h1")
	require.NoError(t, err)
	assert.Empty(t, conn.Programs, "no program is mutual any more")
}

func TestToggleInterest_Rejections(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	candidate := f.seedCandidate(t, "c1")
	require.NoError(t, candidate.SetPaused(participant.RoleCandidate, participant.ProgramHaven, true))
	require.NoError(t, f.participants.Save(context.Background(), candidate))
	h := f.toggleHandler(nil)

	tests := []struct {
		name string
		cmd  ToggleInterestCommand
		want error
	}{
		{"paused program", toggle("h1", "c1", participant.ProgramHaven), participant.ErrProgramNotActive},
		{"program never enabled", toggle("h1", "c1", participant.ProgramLink), participant.ErrProgramNotActive},
		{"unknown likee", toggle("h1", "ghost", participant.ProgramConnect), participant.ErrParticipantNotFound},
		{"unknown program", ToggleInterestCommand{LikerID: "h1", LikeeID: "c1", Program: "pairDate", Category: "x"}, shared.ErrInvalidProgram},
		{"missing category", ToggleInterestCommand{LikerID: "h1", LikeeID: "c1", Program: "Connect"}, shared.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Handle(context.Background(), tt.cmd)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 0, f.edges.Len())
	assert.Empty(t, f.events.types())
}

func TestToggleInterest_ConnectionFailureIsPartialApply(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	broken := &failingConnections{ConnectionRepository: f.connections, failUpsert: true}
	h := f.toggleHandler(broken)
	ctx := context.Background()

	_, err := h.Handle(ctx, toggle("h1", "c1", participant.ProgramConnect))
	require.NoError(t, err)

	res, err := h.Handle(ctx, toggle("c1", "h1", participant.ProgramConnect))
	require.Error(t, err)
	require.NotNil(t, res)

	var partial *PartialApplyError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, "upsert", partial.Op)
	assert.Equal(t, social.PairKey("c1:h1"), partial.PairKey)
	assert.ErrorIs(t, err, shared.ErrStorageUnavailable)

	assert.True(t, res.Liked)
	assert.False(t, res.Matched)
	assert.Equal(t, 2, f.edges.Len(), "edge stays committed")
	assert.Equal(t, 0, f.connections.Len())
	assert.Zero(t, f.events.count(shared.EventMatchMade))
}

func TestToggleInterest_RemoveFailureIsPartialApply(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	broken := &failingConnections{ConnectionRepository: f.connections}
	h := f.toggleHandler(broken)
	ctx := context.Background()

	_, err := h.Handle(ctx, toggle("h1", "c1", participant.ProgramConnect))
	require.NoError(t, err)

	broken.failRemove = true
	res, err := h.Handle(ctx, toggle("h1", "c1", participant.ProgramConnect))
	require.True(t, IsPartialApply(err))
	require.NotNil(t, res)
	assert.False(t, res.Liked)
	assert.Equal(t, 0, f.edges.Len())
}
