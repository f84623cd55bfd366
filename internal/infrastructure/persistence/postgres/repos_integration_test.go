//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

// These tests run the repositories against a real PostgreSQL:
//
//	go test -tags integration ./internal/infrastructure/persistence/postgres/...
//
// The Debian image defaults to the en_US.utf8 collation, which orders
// "alice" before "Bob"; byte order puts "Bob" first.

var (
	dbOnce      sync.Once
	dbContainer testcontainers.Container
	dbConn      *Connection
	dbErr       error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if dbConn != nil {
		dbConn.Close()
	}
	if dbContainer != nil {
		_ = dbContainer.Terminate(context.Background())
	}
	os.Exit(code)
}

func dockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

func startPostgres(ctx context.Context) (*Connection, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "perfect_connect",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}
	dbContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.URL = fmt.Sprintf("postgres://postgres:postgres@%s:%s/perfect_connect?sslmode=disable", host, port.Port())
	conn, err := NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(conn).Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// testDB returns a migrated database with empty engine tables.
func testDB(t *testing.T) *Connection {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if !dockerAvailable() {
		t.Skip("Skipping test: Docker not available")
	}

	dbOnce.Do(func() {
		dbConn, dbErr = startPostgres(context.Background())
	})
	require.NoError(t, dbErr)

	_, err := dbConn.Exec(context.Background(), `TRUNCATE interest_edges, connections`)
	require.NoError(t, err)
	return dbConn
}

func newEdge(t *testing.T, liker, likee string, program participant.Program) *social.InterestEdge {
	t.Helper()
	e, err := social.NewInterestEdge(social.NewInterestEdgeParams{
		ID: uuid.NewString(),
		Key: social.EdgeKey{
			Liker:    participant.ParticipantID(liker),
			Likee:    participant.ParticipantID(likee),
			Program:  program,
			Category: "general",
		},
	})
	require.NoError(t, err)
	return e
}

func newConn(t *testing.T, key social.PairKey, programs ...participant.Program) *social.Connection {
	t.Helper()
	c, err := social.NewConnection(social.NewConnectionParams{
		PairKey:  key,
		Report:   social.EmptyReport(),
		Programs: programs,
	})
	require.NoError(t, err)
	return c
}

func TestEdgeRepository_ConcurrentUpsertCreatesOnce(t *testing.T) {
	repo := NewEdgeRepository(testDB(t))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		edge := newEdge(t, "h1", "c1", participant.ProgramConnect)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Upsert(ctx, edge)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	n, err := repo.CountBetween(ctx, "c1", "h1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepositories_PairKeysFollowByteOrder(t *testing.T) {
	db := testDB(t)
	edges := NewEdgeRepository(db)
	conns := NewConnectionRepository(db)
	ctx := context.Background()

	for _, e := range []*social.InterestEdge{
		newEdge(t, "alice", "Bob", participant.ProgramConnect),
		newEdge(t, "Bob", "alice", participant.ProgramConnect),
	} {
		_, err := edges.Upsert(ctx, e)
		require.NoError(t, err)
	}

	key, err := social.NewPairKey("alice", "Bob")
	require.NoError(t, err)
	require.Equal(t, social.PairKey("Bob:alice"), key)

	pairs, err := edges.ListMutualPairs(ctx, social.ListOptions{})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, key, pairs[0].PairKey)

	withEdges, err := edges.ListPairsWithEdges(ctx, social.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []social.PairKey{key}, withEdges)

	created, err := conns.Upsert(ctx, newConn(t, key, participant.ProgramConnect))
	require.NoError(t, err)
	assert.True(t, created)

	keys, err := conns.ListPairKeys(ctx, social.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []social.PairKey{key}, keys)
}

func TestConnectionRepository_ConcurrentUpsertsMergePrograms(t *testing.T) {
	conns := NewConnectionRepository(testDB(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, program := range participant.AllPrograms() {
		conn := newConn(t, "c1:h1", program)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := conns.Upsert(ctx, conn)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := conns.Find(ctx, "c1:h1")
	require.NoError(t, err)
	assert.Equal(t, participant.AllPrograms(), got.Programs)
}

func TestRepositories_SetProgramsFromMutualEdges(t *testing.T) {
	db := testDB(t)
	edges := NewEdgeRepository(db)
	conns := NewConnectionRepository(db)
	ctx := context.Background()

	for _, e := range []*social.InterestEdge{
		newEdge(t, "h1", "c1", participant.ProgramConnect),
		newEdge(t, "c1", "h1", participant.ProgramConnect),
		newEdge(t, "h1", "c1", participant.ProgramHaven),
	} {
		_, err := edges.Upsert(ctx, e)
		require.NoError(t, err)
	}
	_, err := conns.Upsert(ctx, newConn(t, "c1:h1", participant.ProgramConnect, participant.ProgramHaven))
	require.NoError(t, err)

	programs, err := edges.MutualProgramsBetween(ctx, "c1", "h1")
	require.NoError(t, err)
	assert.Equal(t, []participant.Program{participant.ProgramConnect}, programs)

	existed, err := conns.SetPrograms(ctx, "c1:h1", programs)
	require.NoError(t, err)
	assert.True(t, existed)

	got, err := conns.Find(ctx, "c1:h1")
	require.NoError(t, err)
	assert.Equal(t, []participant.Program{participant.ProgramConnect}, got.Programs)

	existed, err = conns.SetPrograms(ctx, "x1:y1", programs)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestEdgeRepository_DeleteAndFindReciprocal(t *testing.T) {
	repo := NewEdgeRepository(testDB(t))
	ctx := context.Background()
	forward := newEdge(t, "h1", "c1", participant.ProgramLink)

	_, err := repo.Upsert(ctx, forward)
	require.NoError(t, err)

	got, err := repo.FindReciprocal(ctx, forward.Key())
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = repo.Upsert(ctx, newEdge(t, "c1", "h1", participant.ProgramLink))
	require.NoError(t, err)
	got, err = repo.FindReciprocal(ctx, forward.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, forward.Key().Reverse(), got.Key())

	existed, err := repo.Delete(ctx, forward.Key())
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = repo.Delete(ctx, forward.Key())
	require.NoError(t, err)
	assert.False(t, existed)
}
