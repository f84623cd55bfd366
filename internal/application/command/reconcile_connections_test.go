package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

func (f *fixture) reconcileHandler(locker Locker) *ReconcileConnectionsHandler {
	return NewReconcileConnectionsHandler(ReconcileConnectionsParams{
		Participants:   f.participants,
		Edges:          f.edges,
		Connections:    f.connections,
		EventPublisher: f.bus,
		Locker:         locker,
		MaxAttempts:    1,
	})
}

func (f *fixture) putEdge(t *testing.T, liker, likee string, program participant.Program) {
	t.Helper()
	e, err := social.NewInterestEdge(social.NewInterestEdgeParams{
		ID: liker + "-" + likee + "-" + program.String(),
		Key: social.EdgeKey{
			Liker:    participant.ParticipantID(liker),
			Likee:    participant.ParticipantID(likee),
			Program:  program,
			Category: "pairConnect",
		},
	})
	require.NoError(t, err)
	_, err = f.edges.Upsert(context.Background(), e)
	require.NoError(t, err)
}

func (f *fixture) putConnection(t *testing.T, key social.PairKey) {
	t.Helper()
	conn, err := social.NewConnection(social.NewConnectionParams{
		PairKey:  key,
		Report:   social.EmptyReport(),
		Programs: []participant.Program{participant.ProgramConnect},
	})
	require.NoError(t, err)
	_, err = f.connections.Upsert(context.Background(), conn)
	require.NoError(t, err)
}

func TestReconcile_RepairsMissingConnection(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	f.putEdge(t, "h1", "c1", participant.ProgramHaven)
	f.putEdge(t, "c1", "h1", participant.ProgramHaven)
	ctx := context.Background()

	res, err := f.reconcileHandler(nil).Handle(ctx, ReconcileConnectionsCommand{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.PairsScanned)
	assert.Equal(t, 1, res.Repaired)
	assert.Zero(t, res.Failed)

	conn, err := f.connections.Find(ctx, "c1:h1")
	require.NoError(t, err)
	assert.Equal(t, []participant.Program{participant.ProgramHaven}, conn.Programs)
	assert.Equal(t, 1, f.events.count(shared.EventReconcileCompleted))
}

func TestReconcile_RefreshesExistingConnection(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	f.putEdge(t, "h1", "c1", participant.ProgramConnect)
	f.putEdge(t, "c1", "h1", participant.ProgramConnect)
	f.putConnection(t, "c1:h1")

	res, err := f.reconcileHandler(nil).Handle(context.Background(), ReconcileConnectionsCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Refreshed)
	assert.Zero(t, res.Repaired)

	conn, err := f.connections.Find(context.Background(), "c1:h1")
	require.NoError(t, err)
	assert.Positive(t, conn.Report.MatchPercentage, "stale empty report is replaced")
}

func TestReconcile_RetiresOrphans(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	f.putEdge(t, "h1", "c1", participant.ProgramConnect)
	f.putConnection(t, "c1:h1")
	f.putConnection(t, "c2:h2")

	res, err := f.reconcileHandler(nil).Handle(context.Background(), ReconcileConnectionsCommand{BatchSize: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Retired, "a one-way edge keeps its connection")
	assert.Equal(t, 1, f.connections.Len())
	assert.Equal(t, 1, f.events.count(shared.EventConnectionRetired))

	_, err = f.connections.Find(context.Background(), "c2:h2")
	assert.ErrorIs(t, err, social.ErrConnectionNotFound)
}

// lateMatchEdges runs onListed once, right after the first pair listing returns.
type lateMatchEdges struct {
	social.EdgeRepository
	once     sync.Once
	onListed func()
}

func (e *lateMatchEdges) ListPairsWithEdges(ctx context.Context, opts social.ListOptions) ([]social.PairKey, error) {
	keys, err := e.EdgeRepository.ListPairsWithEdges(ctx, opts)
	e.once.Do(e.onListed)
	return keys, err
}

func TestReconcile_KeepsConnectionMatchedDuringPass(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")

	edges := &lateMatchEdges{
		EdgeRepository: f.edges,
		onListed: func() {
			f.putEdge(t, "h1", "c1", participant.ProgramConnect)
			f.putEdge(t, "c1", "h1", participant.ProgramConnect)
			f.putConnection(t, "c1:h1")
		},
	}
	h := NewReconcileConnectionsHandler(ReconcileConnectionsParams{
		Participants:   f.participants,
		Edges:          edges,
		Connections:    f.connections,
		EventPublisher: f.bus,
		MaxAttempts:    1,
	})

	res, err := h.Handle(context.Background(), ReconcileConnectionsCommand{})
	require.NoError(t, err)

	assert.Zero(t, res.Retired)
	assert.Equal(t, 2, f.edges.Len())
	assert.Equal(t, 1, f.connections.Len())
	assert.Zero(t, f.events.count(shared.EventConnectionRetired))
}

func TestReconcile_TrimsProgramsWithoutMutualEdges(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	f.putEdge(t, "h1", "c1", participant.ProgramHaven)
	f.putEdge(t, "c1", "h1", participant.ProgramHaven)
	f.putEdge(t, "h1", "c1", participant.ProgramConnect)
	f.putConnection(t, "c1:h1")

	res, err := f.reconcileHandler(nil).Handle(context.Background(), ReconcileConnectionsCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Refreshed)

	conn, err := f.connections.Find(context.Background(), "c1:h1")
	require.NoError(t, err)
	assert.Equal(t, []participant.Program{participant.ProgramHaven}, conn.Programs)
}

func TestReconcile_DryRunWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	f.putEdge(t, "h1", "c1", participant.ProgramConnect)
	f.putEdge(t, "c1", "h1", participant.ProgramConnect)
	f.putConnection(t, "c2:h2")

	res, err := f.reconcileHandler(nil).Handle(context.Background(), ReconcileConnectionsCommand{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Repaired)
	assert.Equal(t, 1, res.Retired)
	assert.Equal(t, 1, f.connections.Len())

	_, err = f.connections.Find(context.Background(), "c2:h2")
	assert.NoError(t, err)
	assert.Empty(t, f.events.types())
}

func TestReconcile_CountsFailedRepairs(t *testing.T) {
	f := newFixture(t)
	f.seedHost(t, "h1")
	f.seedCandidate(t, "c1")
	f.putEdge(t, "h1", "c1", participant.ProgramConnect)
	f.putEdge(t, "c1", "h1", participant.ProgramConnect)

	h := NewReconcileConnectionsHandler(ReconcileConnectionsParams{
		Participants: f.participants,
		Edges:        f.edges,
		Connections:  &failingConnections{ConnectionRepository: f.connections, failUpsert: true},
		MaxAttempts:  2,
		InitialDelay: 1,
	})

	res, err := h.Handle(context.Background(), ReconcileConnectionsCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Repaired)
}

func TestReconcile_SkipsWhenLockHeld(t *testing.T) {
	f := newFixture(t)
	locker := &stubLocker{}
	ok, err := locker.TryLock(context.Background(), ReconcileLockResource, "other", 0)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.reconcileHandler(locker).Handle(context.Background(), ReconcileConnectionsCommand{})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, f.events.types())
}

func TestReconcile_ReleasesLock(t *testing.T) {
	f := newFixture(t)
	locker := &stubLocker{}

	res, err := f.reconcileHandler(locker).Handle(context.Background(), ReconcileConnectionsCommand{})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, locker.unlocked)
	assert.Empty(t, locker.held)
}

func TestReconcile_RunsUnlockedWhenLockStoreFails(t *testing.T) {
	f := newFixture(t)
	f.putConnection(t, "c2:h2")
	locker := &stubLocker{err: errDriver}

	res, err := f.reconcileHandler(locker).Handle(context.Background(), ReconcileConnectionsCommand{})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Retired)
}

func TestReconcile_RejectsInvalidBatchSize(t *testing.T) {
	f := newFixture(t)
	_, err := f.reconcileHandler(nil).Handle(context.Background(), ReconcileConnectionsCommand{BatchSize: -1})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
