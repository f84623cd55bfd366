package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/persistence/memory"
)

type stores struct {
	participants *memory.ParticipantRepository
	blocks       *memory.BlockRepository
	edges        *memory.EdgeRepository
	connections  *memory.ConnectionRepository
}

func newStores() *stores {
	return &stores{
		participants: memory.NewParticipantRepository(),
		blocks:       memory.NewBlockRepository(),
		edges:        memory.NewEdgeRepository(),
		connections:  memory.NewConnectionRepository(),
	}
}

func enrolled(programs ...participant.Program) participant.Programs {
	out := participant.Programs{}
	for _, p := range programs {
		out[p] = participant.ProgramState{Enabled: true}
	}
	return out
}

func (s *stores) host(t *testing.T, id, language string, programs ...participant.Program) {
	t.Helper()
	p, err := participant.NewParticipant(participant.NewParticipantParams{
		ID:          id,
		DisplayName: "Host " + id,
		Host: &participant.HostProfile{
			Programs:        enrolled(programs...),
			PrimaryLanguage: language,
			Location:        participant.Location{Country: "US"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.participants.Save(context.Background(), p))
}

func (s *stores) candidate(t *testing.T, id string, languages []string, programs ...participant.Program) {
	t.Helper()
	p, err := participant.NewParticipant(participant.NewParticipantParams{
		ID:          id,
		DisplayName: "Candidate " + id,
		Candidate: &participant.CandidateProfile{
			Programs:  enrolled(programs...),
			Languages: languages,
			Location:  participant.Location{Country: "US"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.participants.Save(context.Background(), p))
}

func (s *stores) like(t *testing.T, liker, likee string, program participant.Program) {
	t.Helper()
	e, err := social.NewInterestEdge(social.NewInterestEdgeParams{
		ID: liker + ">" + likee + ">" + program.String(),
		Key: social.EdgeKey{
			Liker:    participant.ParticipantID(liker),
			Likee:    participant.ParticipantID(likee),
			Program:  program,
			Category: "pairConnect",
		},
	})
	require.NoError(t, err)
	_, err = s.edges.Upsert(context.Background(), e)
	require.NoError(t, err)
	// ListByLiker сортирует по времени создания.
	time.Sleep(time.Millisecond)
}

func (s *stores) connect(t *testing.T, a, b string) {
	t.Helper()
	key, err := social.NewPairKey(participant.ParticipantID(a), participant.ParticipantID(b))
	require.NoError(t, err)
	conn, err := social.NewConnection(social.NewConnectionParams{
		PairKey:  key,
		Report:   social.EmptyReport(),
		Programs: []participant.Program{participant.ProgramConnect},
	})
	require.NoError(t, err)
	_, err = s.connections.Upsert(context.Background(), conn)
	require.NoError(t, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// GET CONNECTIONS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetConnections(t *testing.T) {
	s := newStores()
	s.host(t, "h1", "english", participant.ProgramConnect)
	s.candidate(t, "c1", []string{"english"}, participant.ProgramConnect)
	s.candidate(t, "c2", nil, participant.ProgramConnect)
	s.connect(t, "h1", "c1")
	s.connect(t, "c2", "h1")

	h := NewGetConnectionsHandler(s.participants, s.connections)
	res, err := h.Handle(context.Background(), GetConnectionsQuery{ParticipantID: "h1"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	counterparts := []string{res.Connections[0].CounterpartID, res.Connections[1].CounterpartID}
	assert.ElementsMatch(t, []string{"c1", "c2"}, counterparts)
	for _, c := range res.Connections {
		assert.Equal(t, []string{"Connect"}, c.Programs)
		assert.Equal(t, "Candidate "+c.CounterpartID, c.CounterpartName)
	}

	_, err = h.Handle(context.Background(), GetConnectionsQuery{ParticipantID: "ghost"})
	assert.ErrorIs(t, err, participant.ErrParticipantNotFound)

	_, err = h.Handle(context.Background(), GetConnectionsQuery{ParticipantID: " "})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

// ══════════════════════════════════════════════════════════════════════════════
// GET COMMONALITIES
// ══════════════════════════════════════════════════════════════════════════════

func TestGetCommonalities(t *testing.T) {
	s := newStores()
	s.host(t, "h1", "English", participant.ProgramConnect)
	s.candidate(t, "c1", []string{"english"}, participant.ProgramConnect)
	h := NewGetCommonalitiesHandler(s.participants, s.connections, nil)
	ctx := context.Background()

	res, err := h.Handle(ctx, GetCommonalitiesQuery{ParticipantA: "c1", ParticipantB: "h1"})
	require.NoError(t, err)

	assert.Len(t, res.Checklist, social.TotalChecks)
	assert.Equal(t, social.TotalChecks, res.TotalChecks)
	assert.Equal(t, res.Report.SatisfiedChecks(), res.SatisfiedChecks)
	assert.Equal(t, []string{"english"}, res.Report.SharedLanguages)
	assert.False(t, res.Connected)

	reversed, err := h.Handle(ctx, GetCommonalitiesQuery{ParticipantA: "h1", ParticipantB: "c1"})
	require.NoError(t, err)
	assert.Equal(t, res.Report, reversed.Report)

	s.connect(t, "h1", "c1")
	res, err = h.Handle(ctx, GetCommonalitiesQuery{ParticipantA: "c1", ParticipantB: "h1"})
	require.NoError(t, err)
	assert.True(t, res.Connected)
	assert.Equal(t, 0, s.edges.Len(), "read-only")
}

func TestGetCommonalities_Errors(t *testing.T) {
	s := newStores()
	s.host(t, "h1", "english", participant.ProgramConnect)
	h := NewGetCommonalitiesHandler(s.participants, nil, nil)

	_, err := h.Handle(context.Background(), GetCommonalitiesQuery{ParticipantA: "h1", ParticipantB: "h1"})
	assert.ErrorIs(t, err, social.ErrSelfInterest)

	_, err = h.Handle(context.Background(), GetCommonalitiesQuery{ParticipantA: "h1", ParticipantB: "ghost"})
	assert.ErrorIs(t, err, participant.ErrParticipantNotFound)

	_, err = h.Handle(context.Background(), GetCommonalitiesQuery{ParticipantA: "h1"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST INTERESTS / HAS PENDING INTEREST
// ══════════════════════════════════════════════════════════════════════════════

func TestListInterests_NewestFirstWithPagination(t *testing.T) {
	s := newStores()
	s.like(t, "h1", "c1", participant.ProgramConnect)
	s.like(t, "h1", "c2", participant.ProgramConnect)
	s.like(t, "h1", "c3", participant.ProgramHaven)

	h := NewListInterestsHandler(s.edges)
	ctx := context.Background()

	first, err := h.Handle(ctx, ListInterestsQuery{LikerID: "h1", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Interests, 2)
	assert.Equal(t, "c3", first.Interests[0].LikeeID)
	assert.Equal(t, "c2", first.Interests[1].LikeeID)
	assert.True(t, first.HasMore)

	second, err := h.Handle(ctx, ListInterestsQuery{LikerID: "h1", Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, second.Interests, 1)
	assert.Equal(t, "c1", second.Interests[0].LikeeID)
	assert.False(t, second.HasMore)

	haven, err := h.Handle(ctx, ListInterestsQuery{LikerID: "h1", Program: "pairHaven"})
	require.NoError(t, err)
	require.Len(t, haven.Interests, 1)
	assert.Equal(t, "Haven", haven.Interests[0].Program)

	_, err = h.Handle(ctx, ListInterestsQuery{LikerID: "h1", Program: "pairDate"})
	assert.ErrorIs(t, err, shared.ErrInvalidProgram)
}

func TestHasPendingInterest(t *testing.T) {
	s := newStores()
	s.like(t, "h1", "c1", participant.ProgramConnect)
	s.like(t, "h1", "c2", participant.ProgramConnect)
	s.like(t, "c1", "h1", participant.ProgramConnect)

	h := NewHasPendingInterestHandler(s.edges)
	ctx := context.Background()

	res, err := h.Handle(ctx, HasPendingInterestQuery{ParticipantID: "h1", Program: "pairConnect"})
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Equal(t, 2, res.Outgoing)
	assert.Equal(t, 1, res.Unanswered)

	res, err = h.Handle(ctx, HasPendingInterestQuery{ParticipantID: "h1", Program: "Haven"})
	require.NoError(t, err)
	assert.False(t, res.Pending)
	assert.Zero(t, res.Outgoing)
}

// ══════════════════════════════════════════════════════════════════════════════
// DISCOVER CANDIDATES
// ══════════════════════════════════════════════════════════════════════════════

func TestDiscoverCandidates(t *testing.T) {
	s := newStores()
	s.host(t, "h1", "english", participant.ProgramConnect)
	s.host(t, "h2", "english", participant.ProgramConnect)
	s.candidate(t, "c-blocked", []string{"english"}, participant.ProgramConnect)
	s.candidate(t, "c-connected", []string{"english"}, participant.ProgramConnect)
	s.candidate(t, "c-haven", []string{"english"}, participant.ProgramHaven)
	s.candidate(t, "c-low", nil, participant.ProgramConnect)
	s.candidate(t, "c-high-b", []string{"english"}, participant.ProgramConnect)
	s.candidate(t, "c-high-a", []string{"english"}, participant.ProgramConnect)

	ctx := context.Background()
	require.NoError(t, s.blocks.Block(ctx, "c-blocked", "h1"))
	s.connect(t, "h1", "c-connected")
	s.like(t, "h1", "c-low", participant.ProgramConnect)

	h := NewDiscoverCandidatesHandler(DiscoverCandidatesParams{
		Participants: s.participants,
		Blocks:       s.blocks,
		Edges:        s.edges,
		Connections:  s.connections,
	})

	res, err := h.Handle(ctx, DiscoverCandidatesQuery{ViewerID: "h1", Program: "pairConnect"})
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		ids = append(ids, c.ParticipantID)
		assert.Equal(t, "candidate", c.Role)
	}
	assert.Equal(t, []string{"c-high-a", "c-high-b", "c-low"}, ids)
	assert.Equal(t, 3, res.Total)
	assert.Greater(t, res.Candidates[0].MatchPercentage, res.Candidates[2].MatchPercentage)
	assert.True(t, res.Candidates[2].Liked)
	assert.False(t, res.Candidates[0].Liked)

	paged, err := h.Handle(ctx, DiscoverCandidatesQuery{ViewerID: "h1", Program: "Connect", Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, paged.Candidates, 1)
	assert.Equal(t, "c-low", paged.Candidates[0].ParticipantID)
	assert.Equal(t, 3, paged.Total)
}

func TestDiscoverCandidates_ViewerMustBeActive(t *testing.T) {
	s := newStores()
	s.host(t, "h1", "english", participant.ProgramConnect)
	h := NewDiscoverCandidatesHandler(DiscoverCandidatesParams{
		Participants: s.participants,
		Connections:  s.connections,
	})

	_, err := h.Handle(context.Background(), DiscoverCandidatesQuery{ViewerID: "h1", Program: "Haven"})
	assert.ErrorIs(t, err, participant.ErrProgramNotActive)

	_, err = h.Handle(context.Background(), DiscoverCandidatesQuery{ViewerID: "h1", Program: "Connect", Role: "candidate"})
	assert.ErrorIs(t, err, participant.ErrProgramNotActive)

	_, err = h.Handle(context.Background(), DiscoverCandidatesQuery{ViewerID: "h1", Program: "Connect", Role: "admin"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
