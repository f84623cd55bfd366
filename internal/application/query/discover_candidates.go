package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISCOVER CANDIDATES QUERY
// Пул кандидатов для участника в программе: участники противоположной роли,
// активные в этой программе. Исключаются сам участник, заблокированные
// в любую сторону и те, с кем связь уже есть.
//
// Порядок: процент совместимости по убыванию, затем ID.
// ══════════════════════════════════════════════════════════════════════════════

// DiscoverCandidatesQuery содержит параметры запроса.
type DiscoverCandidatesQuery struct {
	// ViewerID - участник, для которого строится пул.
	ViewerID string

	// Program - программа подбора.
	Program string

	// Role - роль участника, от имени которой идёт поиск.
	// Пусто - все роли, активные в программе.
	Role string

	Page     int
	PageSize int
}

// Validate проверяет корректность параметров.
func (q *DiscoverCandidatesQuery) Validate() error {
	q.ViewerID = strings.TrimSpace(q.ViewerID)
	if q.ViewerID == "" {
		return errors.New("viewer_id is required")
	}
	if strings.TrimSpace(q.Program) == "" {
		return errors.New("program is required")
	}
	if q.Role != "" {
		if _, ok := participant.ParseRole(q.Role); !ok {
			return fmt.Errorf("unknown role %q", q.Role)
		}
	}
	if q.Page < 0 || q.PageSize < 0 {
		return errors.New("page and page_size cannot be negative")
	}
	return nil
}

// CandidateDTO - DTO кандидата.
type CandidateDTO struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`

	// Role - роль кандидата (противоположная роли участника).
	Role string `json:"role"`

	MatchPercentage int                      `json:"match_percentage"`
	Report          social.CommonalityReport `json:"report"`

	// Liked - участник уже выразил интерес к кандидату в этой программе.
	Liked bool `json:"liked"`
}

// DiscoverCandidatesResult содержит страницу кандидатов.
type DiscoverCandidatesResult struct {
	Candidates []CandidateDTO `json:"candidates"`
	Program    string         `json:"program"`

	// Total - размер пула до пагинации.
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// DiscoverCandidatesHandler обрабатывает запрос.
type DiscoverCandidatesHandler struct {
	participants participant.Repository
	blocks       participant.BlockRepository
	edges        social.EdgeRepository
	connections  social.ConnectionRepository
	scorer       *social.Scorer
}

// DiscoverCandidatesParams - зависимости обработчика.
type DiscoverCandidatesParams struct {
	Participants participant.Repository
	Blocks       participant.BlockRepository
	Edges        social.EdgeRepository
	Connections  social.ConnectionRepository
	Scorer       *social.Scorer
}

// NewDiscoverCandidatesHandler создаёт новый обработчик.
func NewDiscoverCandidatesHandler(params DiscoverCandidatesParams) *DiscoverCandidatesHandler {
	scorer := params.Scorer
	if scorer == nil {
		scorer = social.NewScorer(social.DefaultScoringPolicy())
	}
	return &DiscoverCandidatesHandler{
		participants: params.Participants,
		blocks:       params.Blocks,
		edges:        params.Edges,
		connections:  params.Connections,
		scorer:       scorer,
	}
}

// Handle выполняет запрос.
func (h *DiscoverCandidatesHandler) Handle(ctx context.Context, query DiscoverCandidatesQuery) (*DiscoverCandidatesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, invalidQuery("DiscoverCandidates", err)
	}
	program, err := participant.ParseProgram(query.Program)
	if err != nil {
		return nil, err
	}

	viewer, err := h.participants.GetByID(ctx, participant.ParticipantID(query.ViewerID))
	if err != nil {
		return nil, storageError("discover_candidates: load viewer", err)
	}

	roles := viewer.ActiveRoles(program)
	if query.Role != "" {
		role, _ := participant.ParseRole(query.Role)
		if !viewer.IsRoleActive(role, program) {
			return nil, fmt.Errorf("discover_candidates: %s in %s: %w", role, program, participant.ErrProgramNotActive)
		}
		roles = []participant.Role{role}
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("discover_candidates: %s: %w", program, participant.ErrProgramNotActive)
	}

	excluded, err := h.exclusions(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	liked, err := h.likedIn(ctx, viewer.ID, program)
	if err != nil {
		return nil, err
	}

	var pool []CandidateDTO
	for _, role := range roles {
		counterpart := role.Counterpart()
		others, err := h.participants.ListActiveInProgram(ctx, counterpart, program)
		if err != nil {
			return nil, storageError("discover_candidates: list "+counterpart.String(), err)
		}
		for _, other := range others {
			if _, skip := excluded[other.ID]; skip {
				continue
			}
			// Участник с двумя ролями попадает в пул один раз.
			excluded[other.ID] = struct{}{}

			report := h.scorer.Score(viewer, other)
			_, isLiked := liked[other.ID]
			pool = append(pool, CandidateDTO{
				ParticipantID:   other.ID.String(),
				DisplayName:     other.DisplayName,
				Role:            counterpart.String(),
				MatchPercentage: report.MatchPercentage,
				Report:          report,
				Liked:           isLiked,
			})
		}
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].MatchPercentage != pool[j].MatchPercentage {
			return pool[i].MatchPercentage > pool[j].MatchPercentage
		}
		return pool[i].ParticipantID < pool[j].ParticipantID
	})

	page := shared.NewPagination(query.Page, query.PageSize)
	start, end := page.Window(len(pool))

	return &DiscoverCandidatesResult{
		Candidates: append([]CandidateDTO{}, pool[start:end]...),
		Program:    program.String(),
		Total:      len(pool),
		Page:       page.Page,
		PageSize:   page.Limit(),
	}, nil
}

// exclusions собирает участников, которых нельзя показывать: сам участник,
// блокировки в обе стороны и уже связанные пары.
func (h *DiscoverCandidatesHandler) exclusions(ctx context.Context, viewer participant.ParticipantID) (map[participant.ParticipantID]struct{}, error) {
	excluded := map[participant.ParticipantID]struct{}{viewer: {}}

	if h.blocks != nil {
		blocked, err := h.blocks.ListBlocked(ctx, viewer)
		if err != nil {
			return nil, storageError("discover_candidates: list blocks", err)
		}
		for _, id := range blocked {
			excluded[id] = struct{}{}
		}
	}

	conns, err := h.connections.ListForParticipant(ctx, viewer)
	if err != nil {
		return nil, storageError("discover_candidates: list connections", err)
	}
	for _, c := range conns {
		excluded[c.Counterpart(viewer)] = struct{}{}
	}

	return excluded, nil
}

// likedIn возвращает адресатов исходящих интересов участника в программе.
func (h *DiscoverCandidatesHandler) likedIn(ctx context.Context, viewer participant.ParticipantID, program participant.Program) (map[participant.ParticipantID]struct{}, error) {
	liked := make(map[participant.ParticipantID]struct{})
	if h.edges == nil {
		return liked, nil
	}
	edges, err := h.edges.ListByLiker(ctx, viewer, social.ListOptions{Program: program})
	if err != nil {
		return nil, storageError("discover_candidates: list interests", err)
	}
	for _, e := range edges {
		liked[e.Likee] = struct{}{}
	}
	return liked, nil
}
