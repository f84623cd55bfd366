package command

import (
	"context"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

// connectionWriter scores a pair and writes its connection.
// Uniqueness per pair and the program merge are enforced by the store's
// upsert, never by a prior read.
type connectionWriter struct {
	edges       social.EdgeRepository
	connections social.ConnectionRepository
	scorer      *social.Scorer
}

// write upserts the connection for key; programs are added to the ones
// already recorded.
func (w connectionWriter) write(ctx context.Context, key social.PairKey, a, b *participant.Participant, programs []participant.Program) (*social.Connection, bool, error) {
	conn, err := social.NewConnection(social.NewConnectionParams{
		PairKey:  key,
		Report:   w.scorer.Score(a, b),
		Programs: programs,
	})
	if err != nil {
		return nil, false, err
	}

	created, err := w.connections.Upsert(ctx, conn)
	if err != nil {
		return nil, false, err
	}
	return conn, created, nil
}

// syncPrograms rewrites the connection's programs from the live reciprocal edges.
func (w connectionWriter) syncPrograms(ctx context.Context, key social.PairKey) error {
	a, b := key.Members()
	programs, err := w.edges.MutualProgramsBetween(ctx, a, b)
	if err != nil {
		return err
	}
	_, err = w.connections.SetPrograms(ctx, key, programs)
	return err
}

// withCorrelation stamps a correlation ID on the known event types.
func withCorrelation(event shared.Event, id string) shared.Event {
	if id == "" {
		return event
	}
	switch e := event.(type) {
	case shared.MatchMadeEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(id)
		return e
	case shared.ConnectionRetiredEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(id)
		return e
	case shared.InterestExpressedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(id)
		return e
	case shared.InterestWithdrawnEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(id)
		return e
	case shared.ProgramPauseChangedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(id)
		return e
	case shared.ReconcileCompletedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(id)
		return e
	}
	return event
}
