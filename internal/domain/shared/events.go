// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Participant events
	EventProgramPaused  EventType = "participant.program_paused"
	EventProgramResumed EventType = "participant.program_resumed"

	// Social events
	EventInterestExpressed EventType = "social.interest_expressed"
	EventInterestWithdrawn EventType = "social.interest_withdrawn"
	EventMatchMade         EventType = "social.match_made"
	EventConnectionRetired EventType = "social.connection_retired"

	// System events
	EventReconcileCompleted EventType = "system.reconcile_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Social Events
// ═══════════════════════════════════════════════════════════════════════════

// InterestExpressedEvent is emitted when a new interest edge is written.
type InterestExpressedEvent struct {
	BaseEvent
	LikerID  string `json:"liker_id"`
	LikeeID  string `json:"likee_id"`
	Program  string `json:"program"`
	Category string `json:"category"`
}

// Payload implements Event interface.
func (e InterestExpressedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"liker_id": e.LikerID,
		"likee_id": e.LikeeID,
		"program":  e.Program,
		"category": e.Category,
	}
}

// NewInterestExpressedEvent creates a new InterestExpressedEvent.
func NewInterestExpressedEvent(likerID, likeeID, program, category string) InterestExpressedEvent {
	return InterestExpressedEvent{
		BaseEvent: NewBaseEvent(EventInterestExpressed, likerID),
		LikerID:   likerID,
		LikeeID:   likeeID,
		Program:   program,
		Category:  category,
	}
}

// InterestWithdrawnEvent is emitted when an interest edge is deleted.
type InterestWithdrawnEvent struct {
	BaseEvent
	LikerID  string `json:"liker_id"`
	LikeeID  string `json:"likee_id"`
	Program  string `json:"program"`
	Category string `json:"category"`
}

// Payload implements Event interface.
func (e InterestWithdrawnEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"liker_id": e.LikerID,
		"likee_id": e.LikeeID,
		"program":  e.Program,
		"category": e.Category,
	}
}

// NewInterestWithdrawnEvent creates a new InterestWithdrawnEvent.
func NewInterestWithdrawnEvent(likerID, likeeID, program, category string) InterestWithdrawnEvent {
	return InterestWithdrawnEvent{
		BaseEvent: NewBaseEvent(EventInterestWithdrawn, likerID),
		LikerID:   likerID,
		LikeeID:   likeeID,
		Program:   program,
		Category:  category,
	}
}

// MatchMadeEvent is emitted when interest between a pair becomes mutual.
// Delivery subsystems subscribe to it; the publisher never waits for them.
type MatchMadeEvent struct {
	BaseEvent
	Kind            string                 `json:"kind"` // always "match"
	PairKey         string                 `json:"pair_key"`
	ParticipantA    string                 `json:"participant_a"`
	ParticipantB    string                 `json:"participant_b"`
	Program         string                 `json:"program"`
	MatchPercentage int                    `json:"match_percentage"`
	Report          map[string]interface{} `json:"report"`
}

// Payload implements Event interface.
func (e MatchMadeEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"kind":             e.Kind,
		"pair_key":         e.PairKey,
		"participant_a":    e.ParticipantA,
		"participant_b":    e.ParticipantB,
		"program":          e.Program,
		"match_percentage": e.MatchPercentage,
		"report":           e.Report,
	}
}

// NewMatchMadeEvent creates a new MatchMadeEvent.
func NewMatchMadeEvent(pairKey, participantA, participantB, program string, matchPercentage int, report map[string]interface{}) MatchMadeEvent {
	return MatchMadeEvent{
		BaseEvent:       NewBaseEvent(EventMatchMade, pairKey),
		Kind:            "match",
		PairKey:         pairKey,
		ParticipantA:    participantA,
		ParticipantB:    participantB,
		Program:         program,
		MatchPercentage: matchPercentage,
		Report:          report,
	}
}

// ConnectionRetiredEvent is emitted when the last edge between a pair is withdrawn.
type ConnectionRetiredEvent struct {
	BaseEvent
	PairKey string `json:"pair_key"`
	Reason  string `json:"reason"` // "withdrawn" or "reconciled"
}

// Payload implements Event interface.
func (e ConnectionRetiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"pair_key": e.PairKey,
		"reason":   e.Reason,
	}
}

// NewConnectionRetiredEvent creates a new ConnectionRetiredEvent.
func NewConnectionRetiredEvent(pairKey, reason string) ConnectionRetiredEvent {
	return ConnectionRetiredEvent{
		BaseEvent: NewBaseEvent(EventConnectionRetired, pairKey),
		PairKey:   pairKey,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Participant Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgramPauseChangedEvent is emitted when a participant pauses or resumes a program.
type ProgramPauseChangedEvent struct {
	BaseEvent
	ParticipantID string `json:"participant_id"`
	Role          string `json:"role"`
	Program       string `json:"program"`
	Paused        bool   `json:"paused"`
}

// Payload implements Event interface.
func (e ProgramPauseChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"participant_id": e.ParticipantID,
		"role":           e.Role,
		"program":        e.Program,
		"paused":         e.Paused,
	}
}

// NewProgramPauseChangedEvent creates a new ProgramPauseChangedEvent.
func NewProgramPauseChangedEvent(participantID, role, program string, paused bool) ProgramPauseChangedEvent {
	eventType := EventProgramResumed
	if paused {
		eventType = EventProgramPaused
	}
	return ProgramPauseChangedEvent{
		BaseEvent:     NewBaseEvent(eventType, participantID),
		ParticipantID: participantID,
		Role:          role,
		Program:       program,
		Paused:        paused,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// ReconcileCompletedEvent is emitted after a connection reconciliation pass.
type ReconcileCompletedEvent struct {
	BaseEvent
	PairsScanned int           `json:"pairs_scanned"`
	Repaired     int           `json:"repaired"`
	Retired      int           `json:"retired"`
	Failed       int           `json:"failed"`
	Duration     time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e ReconcileCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"pairs_scanned": e.PairsScanned,
		"repaired":      e.Repaired,
		"retired":       e.Retired,
		"failed":        e.Failed,
		"duration":      e.Duration.String(),
	}
}

// NewReconcileCompletedEvent creates a new ReconcileCompletedEvent.
func NewReconcileCompletedEvent(scanned, repaired, retired, failed int, duration time.Duration) ReconcileCompletedEvent {
	return ReconcileCompletedEvent{
		BaseEvent:    NewBaseEvent(EventReconcileCompleted, "reconciler"),
		PairsScanned: scanned,
		Repaired:     repaired,
		Retired:      retired,
		Failed:       failed,
		Duration:     duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
