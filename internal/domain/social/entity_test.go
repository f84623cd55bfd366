package social

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
)

func TestNewPairKey_OrderIndependent(t *testing.T) {
	ab, err := NewPairKey("bob", "alice")
	require.NoError(t, err)
	ba, err := NewPairKey("alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.Equal(t, PairKey("alice:bob"), ab)

	a, b := ab.Members()
	assert.Equal(t, participant.ParticipantID("alice"), a)
	assert.Equal(t, participant.ParticipantID("bob"), b)
	assert.True(t, ab.Involves("bob"))
	assert.False(t, ab.Involves("carol"))
	assert.Equal(t, participant.ParticipantID("alice"), ab.Other("bob"))
}

func TestNewPairKey_Rejects(t *testing.T) {
	_, err := NewPairKey("alice", "alice")
	assert.True(t, errors.Is(err, ErrSelfInterest))

	_, err = NewPairKey("", "bob")
	assert.True(t, shared.IsValidation(err))

	_, err = NewPairKey("a:b", "c")
	assert.Error(t, err)
}

func TestParsePairKey(t *testing.T) {
	key, err := ParsePairKey("alice:bob")
	require.NoError(t, err)
	assert.Equal(t, PairKey("alice:bob"), key)

	for _, bad := range []string{"bob:alice", "alice", "alice:alice", "a:b:c", ""} {
		_, err := ParsePairKey(bad)
		assert.ErrorIs(t, err, ErrInvalidPairKey, bad)
	}
}

func TestEdgeKey(t *testing.T) {
	key := EdgeKey{Liker: "alice", Likee: "bob", Program: participant.ProgramConnect, Category: "Connect"}
	require.NoError(t, key.Validate())

	rev := key.Reverse()
	assert.Equal(t, participant.ParticipantID("bob"), rev.Liker)
	assert.Equal(t, participant.ParticipantID("alice"), rev.Likee)
	assert.Equal(t, key.Program, rev.Program)
	assert.Equal(t, key.Category, rev.Category)
	assert.Equal(t, key, rev.Reverse())

	pk1, _ := key.PairKey()
	pk2, _ := rev.PairKey()
	assert.Equal(t, pk1, pk2)

	self := key
	self.Likee = "alice"
	assert.ErrorIs(t, self.Validate(), ErrSelfInterest)

	noProgram := key
	noProgram.Program = "Unknown"
	assert.True(t, shared.IsValidation(noProgram.Validate()))

	noCategory := key
	noCategory.Category = ""
	assert.ErrorIs(t, noCategory.Validate(), ErrInvalidCategory)
}

func TestNewInterestEdge(t *testing.T) {
	edge, err := NewInterestEdge(NewInterestEdgeParams{
		ID:  "edge-1",
		Key: EdgeKey{Liker: "alice", Likee: "bob", Program: participant.ProgramHaven, Category: "Haven"},
	})
	require.NoError(t, err)
	assert.Equal(t, "edge-1", edge.ID)
	assert.False(t, edge.CreatedAt.IsZero())

	_, err = NewInterestEdge(NewInterestEdgeParams{
		ID:  "edge-2",
		Key: EdgeKey{Liker: "alice", Likee: "alice", Program: participant.ProgramHaven, Category: "Haven"},
	})
	assert.ErrorIs(t, err, ErrSelfInterest)
}

func TestConnection_Merge(t *testing.T) {
	conn, err := NewConnection(NewConnectionParams{
		PairKey:  "alice:bob",
		Report:   EmptyReport(),
		Programs: []participant.Program{participant.ProgramHaven},
	})
	require.NoError(t, err)
	assert.Equal(t, participant.ParticipantID("alice"), conn.ParticipantA)
	assert.Equal(t, participant.ParticipantID("bob"), conn.ParticipantB)

	report := EmptyReport()
	report.MatchPercentage = 44
	later, err := NewConnection(NewConnectionParams{
		PairKey:  "alice:bob",
		Report:   report,
		Programs: []participant.Program{participant.ProgramConnect, participant.ProgramHaven},
	})
	require.NoError(t, err)
	createdAt := conn.CreatedAt
	conn.Merge(later)

	assert.Equal(t, []participant.Program{participant.ProgramConnect, participant.ProgramHaven}, conn.Programs)
	assert.Equal(t, 44, conn.Report.MatchPercentage)
	assert.Equal(t, createdAt, conn.CreatedAt)

	conn.SetPrograms([]participant.Program{participant.ProgramHaven, participant.ProgramHaven})
	assert.Equal(t, []participant.Program{participant.ProgramHaven}, conn.Programs)
	conn.SetPrograms([]participant.Program{participant.ProgramConnect, participant.ProgramHaven})
	assert.Equal(t, participant.ParticipantID("alice"), conn.Counterpart("bob"))

	clone := conn.Clone()
	clone.Programs[0] = participant.ProgramLink
	assert.Equal(t, participant.ProgramConnect, conn.Programs[0])
}
