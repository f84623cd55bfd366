package participant

import (
	"context"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrParticipantNotFound - участник не найден.
	ErrParticipantNotFound = shared.ErrParticipantNotFound

	// ErrProgramNotActive - программа не активна у участника.
	ErrProgramNotActive = shared.ErrProgramNotActive
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем профилей.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище профилей участников.
// Движок подбора только читает через него; запись нужна административным командам.
type Repository interface {
	// GetByID возвращает нормализованного участника.
	// Возвращает ErrParticipantNotFound, если участник не найден.
	GetByID(ctx context.Context, id ParticipantID) (*Participant, error)

	// Save создаёт или полностью заменяет участника.
	Save(ctx context.Context, p *Participant) error

	// ListActiveInProgram возвращает участников, у которых роль активна в программе.
	// Результат упорядочен по ID.
	ListActiveInProgram(ctx context.Context, role Role, program Program) ([]*Participant, error)
}

// BlockRepository - хранилище блокировок между участниками.
// Блокировка только исключает участника из пула кандидатов.
type BlockRepository interface {
	// Block блокирует target от имени blocker. Повторный вызов не ошибка.
	Block(ctx context.Context, blocker, target ParticipantID) error

	// Unblock снимает блокировку. Отсутствие блокировки не ошибка.
	Unblock(ctx context.Context, blocker, target ParticipantID) error

	// IsBlocked проверяет блокировку в любом направлении.
	IsBlocked(ctx context.Context, a, b ParticipantID) (bool, error)

	// ListBlocked возвращает всех, кто заблокирован участником или заблокировал его.
	ListBlocked(ctx context.Context, id ParticipantID) ([]ParticipantID, error)
}
