package query

import (
	"context"
	"errors"
	"strings"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COMMONALITIES QUERY
// Пересчитывает отчёт о совместимости двух участников.
// Только чтение: ни рёбра, ни связи не изменяются.
// ══════════════════════════════════════════════════════════════════════════════

// GetCommonalitiesQuery содержит пару участников.
type GetCommonalitiesQuery struct {
	ParticipantA string
	ParticipantB string
}

// Validate проверяет корректность параметров.
func (q *GetCommonalitiesQuery) Validate() error {
	q.ParticipantA = strings.TrimSpace(q.ParticipantA)
	q.ParticipantB = strings.TrimSpace(q.ParticipantB)
	if q.ParticipantA == "" || q.ParticipantB == "" {
		return errors.New("both participants must be provided")
	}
	return nil
}

// GetCommonalitiesResult содержит отчёт и его чек-лист.
type GetCommonalitiesResult struct {
	ParticipantA string `json:"participant_a"`
	ParticipantB string `json:"participant_b"`

	// Report - отчёт о совместимости.
	Report social.CommonalityReport `json:"report"`

	// Checklist - проверки в порядке контракта.
	Checklist []social.Check `json:"checklist"`

	// SatisfiedChecks - число выполненных проверок из TotalChecks.
	SatisfiedChecks int `json:"satisfied_checks"`
	TotalChecks     int `json:"total_checks"`

	// Quality - словесная оценка процента совместимости.
	Quality social.MatchQuality `json:"quality"`

	// Connected - есть ли у пары подтверждённая связь.
	Connected bool `json:"connected"`
}

// GetCommonalitiesHandler обрабатывает запрос отчёта.
type GetCommonalitiesHandler struct {
	participants participant.Repository
	connections  social.ConnectionRepository
	scorer       *social.Scorer
}

// NewGetCommonalitiesHandler создаёт новый обработчик.
// connections может быть nil - тогда Connected всегда false.
func NewGetCommonalitiesHandler(participants participant.Repository, connections social.ConnectionRepository, scorer *social.Scorer) *GetCommonalitiesHandler {
	if scorer == nil {
		scorer = social.NewScorer(social.DefaultScoringPolicy())
	}
	return &GetCommonalitiesHandler{
		participants: participants,
		connections:  connections,
		scorer:       scorer,
	}
}

// Handle выполняет запрос.
func (h *GetCommonalitiesHandler) Handle(ctx context.Context, query GetCommonalitiesQuery) (*GetCommonalitiesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, invalidQuery("GetCommonalities", err)
	}
	if query.ParticipantA == query.ParticipantB {
		return nil, social.ErrSelfInterest
	}

	a, err := h.participants.GetByID(ctx, participant.ParticipantID(query.ParticipantA))
	if err != nil {
		return nil, storageError("get_commonalities: load "+query.ParticipantA, err)
	}
	b, err := h.participants.GetByID(ctx, participant.ParticipantID(query.ParticipantB))
	if err != nil {
		return nil, storageError("get_commonalities: load "+query.ParticipantB, err)
	}

	report := h.scorer.Score(a, b)
	result := &GetCommonalitiesResult{
		ParticipantA:    a.ID.String(),
		ParticipantB:    b.ID.String(),
		Report:          report,
		Checklist:       report.Checklist(),
		SatisfiedChecks: report.SatisfiedChecks(),
		TotalChecks:     social.TotalChecks,
		Quality:         report.Score().Quality(),
	}

	if h.connections != nil {
		key, err := social.NewPairKey(a.ID, b.ID)
		if err != nil {
			return nil, err
		}
		_, err = h.connections.Find(ctx, key)
		switch {
		case err == nil:
			result.Connected = true
		case errors.Is(err, social.ErrConnectionNotFound):
		default:
			return nil, storageError("get_commonalities: find connection", err)
		}
	}

	return result, nil
}
