package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/messaging"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/persistence/memory"
)

var errDriver = errors.New("connection reset by peer")

// recorder collects every event published on a synchronous bus.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) handle(event shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

func (r *recorder) count(t shared.EventType) int {
	n := 0
	for _, got := range r.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	participants *memory.ParticipantRepository
	blocks       *memory.BlockRepository
	edges        *memory.EdgeRepository
	connections  *memory.ConnectionRepository
	bus          *messaging.InMemoryEventBus
	events       *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
	t.Cleanup(func() { _ = bus.Close() })

	rec := &recorder{}
	require.NoError(t, bus.SubscribeAll(rec.handle))

	return &fixture{
		participants: memory.NewParticipantRepository(),
		blocks:       memory.NewBlockRepository(),
		edges:        memory.NewEdgeRepository(),
		connections:  memory.NewConnectionRepository(),
		bus:          bus,
		events:       rec,
	}
}

func active() participant.ProgramState {
	return participant.ProgramState{Enabled: true}
}

// seedHost stores a host family enrolled in Connect and Haven.
func (f *fixture) seedHost(t *testing.T, id string) *participant.Participant {
	t.Helper()
	p, err := participant.NewParticipant(participant.NewParticipantParams{
		ID:          id,
		DisplayName: "Host " + id,
		Host: &participant.HostProfile{
			Programs:        participant.Programs{participant.ProgramConnect: active(), participant.ProgramHaven: active()},
			PrimaryLanguage: "English",
			Religion:        "None",
			Pets:            []string{"dog"},
			Children: []participant.Child{
				{Age: 6, Interests: []string{"swimming", "music"}, Temperaments: []string{"calm"}},
			},
			Location: participant.Location{Country: "US", State: "CA", City: "Oakland"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, f.participants.Save(context.Background(), p))
	return p
}

// seedCandidate stores a candidate enrolled in Connect and Haven.
func (f *fixture) seedCandidate(t *testing.T, id string) *participant.Participant {
	t.Helper()
	p, err := participant.NewParticipant(participant.NewParticipantParams{
		ID:          id,
		DisplayName: "Candidate " + id,
		Candidate: &participant.CandidateProfile{
			Programs:     participant.Programs{participant.ProgramConnect: active(), participant.ProgramHaven: active()},
			Age:          24,
			Languages:    []string{"english", "spanish"},
			Pets:         []string{"Dog"},
			Temperaments: []string{"calm"},
			ThingsILove:  []string{"music"},
			Religion:     "none",
			Location:     participant.Location{Country: "US", State: "NY", City: "Albany"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, f.participants.Save(context.Background(), p))
	return p
}

func (f *fixture) toggleHandler(connections social.ConnectionRepository) *ToggleInterestHandler {
	if connections == nil {
		connections = f.connections
	}
	return NewToggleInterestHandler(ToggleInterestParams{
		Participants:   f.participants,
		Edges:          f.edges,
		Connections:    connections,
		EventPublisher: f.bus,
	})
}

func toggle(liker, likee string, program participant.Program) ToggleInterestCommand {
	return ToggleInterestCommand{
		LikerID:  liker,
		LikeeID:  likee,
		Program:  program.String(),
		Category: "pairConnect",
	}
}

// failingConnections fails selected operations with a driver error.
type failingConnections struct {
	social.ConnectionRepository
	failUpsert bool
	failRemove bool
}

func (f *failingConnections) Upsert(ctx context.Context, conn *social.Connection) (bool, error) {
	if f.failUpsert {
		return false, errDriver
	}
	return f.ConnectionRepository.Upsert(ctx, conn)
}

func (f *failingConnections) Remove(ctx context.Context, key social.PairKey) (bool, error) {
	if f.failRemove {
		return false, errDriver
	}
	return f.ConnectionRepository.Remove(ctx, key)
}

// stubLocker is an in-process Locker.
type stubLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	unlocked int
}

func (l *stubLocker) TryLock(_ context.Context, resource, token string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.held == nil {
		l.held = make(map[string]string)
	}
	if _, ok := l.held[resource]; ok {
		return false, nil
	}
	l.held[resource] = token
	return true, nil
}

func (l *stubLocker) Unlock(_ context.Context, resource, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[resource] == token {
		delete(l.held, resource)
		l.unlocked++
	}
	return nil
}
