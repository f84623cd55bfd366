package query

import (
	"context"
	"errors"
	"strings"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// HAS PENDING INTEREST QUERY
// Производная замена флага "<program>Like" в профиле: вычисляется из рёбер,
// поэтому не может разойтись с ними.
// ══════════════════════════════════════════════════════════════════════════════

// HasPendingInterestQuery содержит параметры запроса.
type HasPendingInterestQuery struct {
	ParticipantID string
	Program       string
}

// Validate проверяет корректность параметров.
func (q *HasPendingInterestQuery) Validate() error {
	q.ParticipantID = strings.TrimSpace(q.ParticipantID)
	if q.ParticipantID == "" {
		return errors.New("participant_id is required")
	}
	if strings.TrimSpace(q.Program) == "" {
		return errors.New("program is required")
	}
	return nil
}

// HasPendingInterestResult содержит ответ.
type HasPendingInterestResult struct {
	ParticipantID string `json:"participant_id"`
	Program       string `json:"program"`

	// Pending - есть хотя бы один исходящий интерес в программе.
	Pending bool `json:"pending"`

	// Outgoing - число исходящих интересов в программе.
	Outgoing int `json:"outgoing"`

	// Unanswered - сколько из них ещё не взаимны.
	Unanswered int `json:"unanswered"`
}

// HasPendingInterestHandler обрабатывает запрос.
type HasPendingInterestHandler struct {
	edges social.EdgeRepository
}

// NewHasPendingInterestHandler создаёт новый обработчик.
func NewHasPendingInterestHandler(edges social.EdgeRepository) *HasPendingInterestHandler {
	return &HasPendingInterestHandler{edges: edges}
}

// Handle выполняет запрос.
func (h *HasPendingInterestHandler) Handle(ctx context.Context, query HasPendingInterestQuery) (*HasPendingInterestResult, error) {
	if err := query.Validate(); err != nil {
		return nil, invalidQuery("HasPendingInterest", err)
	}
	program, err := participant.ParseProgram(query.Program)
	if err != nil {
		return nil, err
	}

	edges, err := h.edges.ListByLiker(ctx, participant.ParticipantID(query.ParticipantID), social.ListOptions{Program: program})
	if err != nil {
		return nil, storageError("has_pending_interest", err)
	}

	result := &HasPendingInterestResult{
		ParticipantID: query.ParticipantID,
		Program:       program.String(),
		Pending:       len(edges) > 0,
		Outgoing:      len(edges),
	}

	for _, e := range edges {
		reciprocal, err := h.edges.FindReciprocal(ctx, e.Key())
		if err != nil {
			return nil, storageError("has_pending_interest: reciprocal", err)
		}
		if reciprocal == nil {
			result.Unanswered++
		}
	}

	return result, nil
}
