package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CONNECTIONS QUERY
// Возвращает все подтверждённые связи участника, новые первыми.
// Связь одна на пару, сколько бы программ ни совпало.
// ══════════════════════════════════════════════════════════════════════════════

// GetConnectionsQuery содержит параметры запроса связей.
type GetConnectionsQuery struct {
	// ParticipantID - участник, чьи связи нужны.
	ParticipantID string
}

// Validate проверяет корректность параметров.
func (q *GetConnectionsQuery) Validate() error {
	q.ParticipantID = strings.TrimSpace(q.ParticipantID)
	if q.ParticipantID == "" {
		return errors.New("participant_id is required")
	}
	return nil
}

// ConnectionDTO - DTO связи с точки зрения одного участника.
type ConnectionDTO struct {
	// PairKey - канонический ключ пары.
	PairKey string `json:"pair_key"`

	// CounterpartID - второй участник пары.
	CounterpartID string `json:"counterpart_id"`

	// CounterpartName - отображаемое имя второго участника (если профиль доступен).
	CounterpartName string `json:"counterpart_name,omitempty"`

	// Programs - программы, в которых интерес взаимен.
	Programs []string `json:"programs"`

	// MatchPercentage - процент совместимости из кэшированного отчёта.
	MatchPercentage int `json:"match_percentage"`

	// Report - кэшированный отчёт о совместимости.
	Report social.CommonalityReport `json:"report"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetConnectionsResult содержит результат запроса.
type GetConnectionsResult struct {
	ParticipantID string          `json:"participant_id"`
	Connections   []ConnectionDTO `json:"connections"`
	Total         int             `json:"total"`
}

// GetConnectionsHandler обрабатывает запросы связей.
type GetConnectionsHandler struct {
	participants participant.Repository
	connections  social.ConnectionRepository
}

// NewGetConnectionsHandler создаёт новый обработчик.
func NewGetConnectionsHandler(participants participant.Repository, connections social.ConnectionRepository) *GetConnectionsHandler {
	return &GetConnectionsHandler{
		participants: participants,
		connections:  connections,
	}
}

// Handle выполняет запрос.
func (h *GetConnectionsHandler) Handle(ctx context.Context, query GetConnectionsQuery) (*GetConnectionsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, invalidQuery("GetConnections", err)
	}

	id := participant.ParticipantID(query.ParticipantID)
	if _, err := h.participants.GetByID(ctx, id); err != nil {
		return nil, storageError("get_connections: load participant", err)
	}

	conns, err := h.connections.ListForParticipant(ctx, id)
	if err != nil {
		return nil, storageError("get_connections: list", err)
	}

	result := &GetConnectionsResult{
		ParticipantID: id.String(),
		Connections:   make([]ConnectionDTO, 0, len(conns)),
		Total:         len(conns),
	}

	for _, c := range conns {
		counterpart := c.Counterpart(id)
		dto := ConnectionDTO{
			PairKey:         c.PairKey.String(),
			CounterpartID:   counterpart.String(),
			Programs:        programNames(c.Programs),
			MatchPercentage: c.Report.MatchPercentage,
			Report:          c.Report,
			CreatedAt:       c.CreatedAt,
			UpdatedAt:       c.UpdatedAt,
		}

		// Имя - необязательное обогащение; удалённый профиль не ломает список.
		if p, err := h.participants.GetByID(ctx, counterpart); err == nil {
			dto.CounterpartName = p.DisplayName
		}

		result.Connections = append(result.Connections, dto)
	}

	return result, nil
}

func programNames(programs []participant.Program) []string {
	out := make([]string, 0, len(programs))
	for _, p := range programs {
		out = append(out, p.String())
	}
	return out
}
