// Package social содержит доменную модель взаимного интереса и связей.
package social

import (
	"strings"
	"time"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrSelfInterest - участник не может проявить интерес к себе.
	ErrSelfInterest = shared.ErrSelfInterest

	// ErrDuplicateEdge - ребро уже существует (артефакт гонки).
	ErrDuplicateEdge = shared.ErrDuplicateEdge

	// ErrConnectionNotFound - связь не найдена.
	ErrConnectionNotFound = shared.ErrConnectionNotFound

	// ErrInvalidPairKey - невалидный ключ пары.
	ErrInvalidPairKey = shared.ErrInvalidPairKey

	// ErrInvalidCategory - невалидная категория.
	ErrInvalidCategory = shared.NewDomainError("social", "Validate", shared.ErrInvalidInput, "category must be 1-64 chars")
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// PairKeySeparator разделяет ID в каноническом ключе пары.
const PairKeySeparator = ":"

// PairKey - канонический ключ неупорядоченной пары участников.
// ID сортируются лексикографически, поэтому ключ не зависит от порядка.
type PairKey string

// NewPairKey строит канонический ключ пары.
func NewPairKey(a, b participant.ParticipantID) (PairKey, error) {
	if !a.IsValid() || !b.IsValid() {
		return "", shared.ErrInvalidParticipantID
	}
	if a == b {
		return "", ErrSelfInterest
	}
	if b < a {
		a, b = b, a
	}
	return PairKey(string(a) + PairKeySeparator + string(b)), nil
}

// ParsePairKey разбирает и проверяет ключ пары.
func ParsePairKey(s string) (PairKey, error) {
	parts := strings.Split(s, PairKeySeparator)
	if len(parts) != 2 {
		return "", ErrInvalidPairKey
	}
	key, err := NewPairKey(participant.ParticipantID(parts[0]), participant.ParticipantID(parts[1]))
	if err != nil || string(key) != s {
		return "", ErrInvalidPairKey
	}
	return key, nil
}

// Members возвращает участников пары в каноническом порядке.
func (k PairKey) Members() (participant.ParticipantID, participant.ParticipantID) {
	a, b, _ := strings.Cut(string(k), PairKeySeparator)
	return participant.ParticipantID(a), participant.ParticipantID(b)
}

// Involves проверяет, входит ли участник в пару.
func (k PairKey) Involves(id participant.ParticipantID) bool {
	a, b := k.Members()
	return id == a || id == b
}

// Other возвращает второго участника пары.
func (k PairKey) Other(id participant.ParticipantID) participant.ParticipantID {
	a, b := k.Members()
	if id == a {
		return b
	}
	return a
}

// String возвращает строковое представление ключа.
func (k PairKey) String() string {
	return string(k)
}

// Category уточняет вариант программы, в котором выражен интерес.
type Category string

// IsValid проверяет категорию.
func (c Category) IsValid() bool {
	s := string(c)
	return s != "" && len(s) <= 64 && strings.TrimSpace(s) == s
}

// String возвращает строковое представление категории.
func (c Category) String() string {
	return string(c)
}

// EdgeKey - уникальный ключ направленного ребра интереса.
type EdgeKey struct {
	Liker    participant.ParticipantID `json:"likerId"`
	Likee    participant.ParticipantID `json:"likeeId"`
	Program  participant.Program       `json:"program"`
	Category Category                  `json:"category"`
}

// Validate проверяет ключ ребра.
func (k EdgeKey) Validate() error {
	if !k.Liker.IsValid() || !k.Likee.IsValid() {
		return shared.ErrInvalidParticipantID
	}
	if k.Liker == k.Likee {
		return ErrSelfInterest
	}
	if !k.Program.IsValid() {
		return shared.ErrInvalidProgram
	}
	if !k.Category.IsValid() {
		return ErrInvalidCategory
	}
	return nil
}

// Reverse возвращает ключ встречного ребра той же программы и категории.
func (k EdgeKey) Reverse() EdgeKey {
	return EdgeKey{
		Liker:    k.Likee,
		Likee:    k.Liker,
		Program:  k.Program,
		Category: k.Category,
	}
}

// PairKey возвращает ключ пары, которую связывает ребро.
func (k EdgeKey) PairKey() (PairKey, error) {
	return NewPairKey(k.Liker, k.Likee)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY: INTEREST EDGE
// Направленный интерес одного участника к другому в рамках программы.
// ══════════════════════════════════════════════════════════════════════════════

// InterestEdge - направленное ребро интереса.
type InterestEdge struct {
	// ID - уникальный идентификатор ребра (UUID).
	ID string `json:"id"`

	EdgeKey

	// CreatedAt - когда интерес был выражен.
	CreatedAt time.Time `json:"createdAt"`
}

// NewInterestEdgeParams - параметры для создания ребра.
type NewInterestEdgeParams struct {
	ID  string
	Key EdgeKey
}

// NewInterestEdge создаёт новое ребро интереса.
func NewInterestEdge(params NewInterestEdgeParams) (*InterestEdge, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("social", "NewInterestEdge", shared.ErrEmptyValue, "edge id is required")
	}
	if err := params.Key.Validate(); err != nil {
		return nil, err
	}
	return &InterestEdge{
		ID:        params.ID,
		EdgeKey:   params.Key,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Key возвращает уникальный ключ ребра.
func (e *InterestEdge) Key() EdgeKey {
	return e.EdgeKey
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY: CONNECTION
// Подтверждённая взаимная симпатия: одна запись на неупорядоченную пару.
// ══════════════════════════════════════════════════════════════════════════════

// Connection - связь между двумя участниками.
// Это производный кэш: она всегда восстанавливается из живых рёбер.
type Connection struct {
	// PairKey - канонический ключ пары.
	PairKey PairKey `json:"pairKey"`

	// ParticipantA, ParticipantB - участники в каноническом порядке.
	ParticipantA participant.ParticipantID `json:"participantA"`
	ParticipantB participant.ParticipantID `json:"participantB"`

	// Report - кэшированный отчёт о совместимости.
	Report CommonalityReport `json:"report"`

	// Programs - программы, в которых интерес стал взаимным.
	Programs []participant.Program `json:"programs"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewConnectionParams - параметры для создания связи.
type NewConnectionParams struct {
	PairKey  PairKey
	Report   CommonalityReport
	Programs []participant.Program
}

// NewConnection создаёт связь для пары.
func NewConnection(params NewConnectionParams) (*Connection, error) {
	key, err := ParsePairKey(string(params.PairKey))
	if err != nil {
		return nil, err
	}
	a, b := key.Members()
	now := time.Now().UTC()
	return &Connection{
		PairKey:      key,
		ParticipantA: a,
		ParticipantB: b,
		Report:       params.Report,
		Programs:     canonicalPrograms(params.Programs),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Merge принимает отчёт более поздней записи той же пары и объединяет программы.
// CreatedAt остаётся от первой записи.
func (c *Connection) Merge(later *Connection) {
	c.Report = later.Report.Clone()
	c.Programs = canonicalPrograms(append(append([]participant.Program{}, c.Programs...), later.Programs...))
	c.UpdatedAt = later.UpdatedAt
}

// SetPrograms заменяет список программ.
func (c *Connection) SetPrograms(programs []participant.Program) {
	c.Programs = canonicalPrograms(programs)
	c.UpdatedAt = time.Now().UTC()
}

// Involves проверяет, входит ли участник в связь.
func (c *Connection) Involves(id participant.ParticipantID) bool {
	return c.PairKey.Involves(id)
}

// Counterpart возвращает второго участника связи.
func (c *Connection) Counterpart(id participant.ParticipantID) participant.ParticipantID {
	return c.PairKey.Other(id)
}

// Clone создаёт глубокую копию связи.
func (c *Connection) Clone() *Connection {
	clone := *c
	clone.Report = c.Report.Clone()
	clone.Programs = append([]participant.Program{}, c.Programs...)
	return &clone
}

// canonicalPrograms убирает дубликаты и упорядочивает программы канонически.
func canonicalPrograms(programs []participant.Program) []participant.Program {
	seen := make(map[participant.Program]bool, len(programs))
	for _, p := range programs {
		seen[p] = true
	}
	out := make([]participant.Program, 0, len(seen))
	for _, p := range participant.AllPrograms() {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}

// MutualPair - пара с живыми рёбрами в обе стороны.
type MutualPair struct {
	PairKey PairKey

	// Programs - программы, где встречные рёбра совпадают по программе и категории.
	Programs []participant.Program
}
