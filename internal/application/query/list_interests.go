package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST INTERESTS QUERY
// Исходящие интересы участника, новые первыми, с пагинацией.
// ══════════════════════════════════════════════════════════════════════════════

// ListInterestsQuery содержит параметры запроса.
type ListInterestsQuery struct {
	// LikerID - автор интересов.
	LikerID string

	// Program - фильтр по программе (пусто - все программы).
	Program string

	Page     int
	PageSize int
}

// Validate проверяет корректность параметров.
func (q *ListInterestsQuery) Validate() error {
	q.LikerID = strings.TrimSpace(q.LikerID)
	if q.LikerID == "" {
		return errors.New("liker_id is required")
	}
	if q.Page < 0 || q.PageSize < 0 {
		return errors.New("page and page_size cannot be negative")
	}
	return nil
}

// InterestDTO - DTO исходящего интереса.
type InterestDTO struct {
	ID       string    `json:"id"`
	LikeeID  string    `json:"likee_id"`
	Program  string    `json:"program"`
	Category string    `json:"category"`
	LikedAt  time.Time `json:"liked_at"`
}

// ListInterestsResult содержит страницу интересов.
type ListInterestsResult struct {
	Interests []InterestDTO `json:"interests"`
	Page      int           `json:"page"`
	PageSize  int           `json:"page_size"`

	// HasMore - есть ли следующая страница.
	HasMore bool `json:"has_more"`
}

// ListInterestsHandler обрабатывает запрос.
type ListInterestsHandler struct {
	edges social.EdgeRepository
}

// NewListInterestsHandler создаёт новый обработчик.
func NewListInterestsHandler(edges social.EdgeRepository) *ListInterestsHandler {
	return &ListInterestsHandler{edges: edges}
}

// Handle выполняет запрос.
func (h *ListInterestsHandler) Handle(ctx context.Context, query ListInterestsQuery) (*ListInterestsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, invalidQuery("ListInterests", err)
	}

	opts := social.ListOptions{}
	if query.Program != "" {
		program, err := participant.ParseProgram(query.Program)
		if err != nil {
			return nil, err
		}
		opts.Program = program
	}

	page := shared.NewPagination(query.Page, query.PageSize)
	opts.Offset = page.Offset()
	opts.Limit = page.Limit() + 1

	edges, err := h.edges.ListByLiker(ctx, participant.ParticipantID(query.LikerID), opts)
	if err != nil {
		return nil, storageError("list_interests", err)
	}

	result := &ListInterestsResult{
		Interests: make([]InterestDTO, 0, len(edges)),
		Page:      page.Page,
		PageSize:  page.Limit(),
	}
	if len(edges) > page.Limit() {
		edges = edges[:page.Limit()]
		result.HasMore = true
	}

	for _, e := range edges {
		result.Interests = append(result.Interests, InterestDTO{
			ID:       e.ID,
			LikeeID:  e.Likee.String(),
			Program:  e.Program.String(),
			Category: e.Category.String(),
			LikedAt:  e.CreatedAt,
		})
	}

	return result, nil
}
