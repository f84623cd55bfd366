package social

import (
	"context"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
//
// Принципы:
// - Уникальность рёбер и связей обеспечивает хранилище, а не вызывающий код
// - Отсутствие записи при удалении не является ошибкой
// ══════════════════════════════════════════════════════════════════════════════

// ListOptions - параметры выборки.
type ListOptions struct {
	// Limit - максимальное количество записей (0 - без ограничения).
	Limit int

	// Offset - смещение.
	Offset int

	// Program - фильтр по программе (пусто - все программы).
	Program participant.Program
}

// ══════════════════════════════════════════════════════════════════════════════
// EDGE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// EdgeRepository - хранилище направленных рёбер интереса.
type EdgeRepository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Mutations
	// ─────────────────────────────────────────────────────────────────────────

	// Upsert вставляет ребро, если его нет. Повтор - no-op с created=false.
	// ErrDuplicateEdge допускается только как артефакт гонки.
	Upsert(ctx context.Context, edge *InterestEdge) (created bool, err error)

	// Delete удаляет ребро и сообщает, существовало ли оно.
	Delete(ctx context.Context, key EdgeKey) (existed bool, err error)

	// ─────────────────────────────────────────────────────────────────────────
	// Queries
	// ─────────────────────────────────────────────────────────────────────────

	// Exists проверяет наличие ребра.
	Exists(ctx context.Context, key EdgeKey) (bool, error)

	// FindReciprocal возвращает встречное ребро (key.Reverse()) или nil, nil.
	FindReciprocal(ctx context.Context, key EdgeKey) (*InterestEdge, error)

	// CountBetween считает живые рёбра между парой в обе стороны по всем программам.
	CountBetween(ctx context.Context, a, b participant.ParticipantID) (int, error)

	// MutualProgramsBetween возвращает программы, в которых у пары есть
	// встречные рёбра одной категории, в каноническом порядке.
	MutualProgramsBetween(ctx context.Context, a, b participant.ParticipantID) ([]participant.Program, error)

	// ListByLiker возвращает исходящие рёбра участника, новые первыми.
	ListByLiker(ctx context.Context, liker participant.ParticipantID, opts ListOptions) ([]*InterestEdge, error)

	// ListMutualPairs возвращает пары со встречными рёбрами одной программы и категории.
	ListMutualPairs(ctx context.Context, opts ListOptions) ([]MutualPair, error)

	// ListPairsWithEdges возвращает ключи пар, между которыми есть хотя бы одно ребро.
	ListPairsWithEdges(ctx context.Context, opts ListOptions) ([]PairKey, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ConnectionRepository - хранилище связей, одна запись на пару.
type ConnectionRepository interface {
	// Upsert создаёт связь или заменяет её отчёт по ключу пары.
	// Программы conn добавляются к уже записанным атомарно, внутри хранилища.
	Upsert(ctx context.Context, conn *Connection) (created bool, err error)

	// SetPrograms перезаписывает список программ существующей связи.
	// Отсутствие связи - no-op с existed=false.
	SetPrograms(ctx context.Context, key PairKey, programs []participant.Program) (existed bool, err error)

	// Remove удаляет связь; отсутствие - no-op с existed=false.
	Remove(ctx context.Context, key PairKey) (existed bool, err error)

	// Find возвращает связь.
	// Возвращает ErrConnectionNotFound, если связи нет.
	Find(ctx context.Context, key PairKey) (*Connection, error)

	// ListForParticipant возвращает связи участника, новые первыми.
	ListForParticipant(ctx context.Context, id participant.ParticipantID) ([]*Connection, error)

	// ListPairKeys возвращает ключи всех связей.
	ListPairKeys(ctx context.Context, opts ListOptions) ([]PairKey, error)
}
