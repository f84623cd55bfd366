// Package notification содержит доменную модель уведомлений о взаимной симпатии.
// Движок подбора не ждёт доставки: уведомления строятся из события match_made
// и уходят в канал доставки асинхронно.
package notification

import (
	"errors"
	"time"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationID представляет уникальный идентификатор уведомления.
type NotificationID string

// IsValid проверяет, что ID не пустой.
func (id NotificationID) IsValid() bool {
	return len(id) > 0
}

// String возвращает строковое представление ID.
func (id NotificationID) String() string {
	return string(id)
}

// NotificationType определяет тип уведомления.
type NotificationType string

const (
	// NotificationTypeMatch - интерес стал взаимным.
	NotificationTypeMatch NotificationType = "match"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidNotification - уведомление не прошло проверку.
	ErrInvalidNotification = errors.New("invalid notification")

	// ErrDeliveryFailed - канал не смог доставить уведомление.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY: MATCH NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// MatchNotification - уведомление одного участника о новой взаимной симпатии.
type MatchNotification struct {
	ID              NotificationID            `json:"id"`
	Type            NotificationType          `json:"kind"`
	Recipient       participant.ParticipantID `json:"recipient"`
	Counterpart     participant.ParticipantID `json:"counterpart"`
	PairKey         string                    `json:"pairKey"`
	Program         participant.Program       `json:"program"`
	MatchPercentage int                       `json:"matchPercentage"`
	Report          map[string]interface{}    `json:"report"`
	CorrelationID   string                    `json:"correlationId,omitempty"`
	CreatedAt       time.Time                 `json:"createdAt"`
}

// MatchParams - данные события, из которых строятся уведомления.
type MatchParams struct {
	PairKey         string
	ParticipantA    participant.ParticipantID
	ParticipantB    participant.ParticipantID
	Program         participant.Program
	MatchPercentage int
	Report          map[string]interface{}
	CorrelationID   string
}

// NewMatchNotifications создаёт по уведомлению для каждого участника пары.
// newID вызывается по разу на уведомление.
func NewMatchNotifications(params MatchParams, newID func() string) ([]*MatchNotification, error) {
	if params.PairKey == "" || !params.ParticipantA.IsValid() || !params.ParticipantB.IsValid() {
		return nil, ErrInvalidNotification
	}
	if params.ParticipantA == params.ParticipantB {
		return nil, ErrInvalidNotification
	}

	now := time.Now().UTC()
	build := func(recipient, counterpart participant.ParticipantID) *MatchNotification {
		return &MatchNotification{
			ID:              NotificationID(newID()),
			Type:            NotificationTypeMatch,
			Recipient:       recipient,
			Counterpart:     counterpart,
			PairKey:         params.PairKey,
			Program:         params.Program,
			MatchPercentage: params.MatchPercentage,
			Report:          params.Report,
			CorrelationID:   params.CorrelationID,
			CreatedAt:       now,
		}
	}

	return []*MatchNotification{
		build(params.ParticipantA, params.ParticipantB),
		build(params.ParticipantB, params.ParticipantA),
	}, nil
}
