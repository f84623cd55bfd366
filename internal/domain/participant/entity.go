// Package participant содержит доменную модель участника Perfect Connect.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package participant

import (
	"sort"
	"strings"
	"time"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ParticipantID представляет непрозрачный идентификатор участника.
type ParticipantID string

// IsValid проверяет, что ID непустой, без пробелов по краям и без ':'.
// Двоеточие зарезервировано как разделитель канонического ключа пары.
func (id ParticipantID) IsValid() bool {
	s := string(id)
	return s != "" && len(s) <= 128 && strings.TrimSpace(s) == s && !strings.Contains(s, ":")
}

// String возвращает строковое представление ID.
func (id ParticipantID) String() string {
	return string(id)
}

// Program представляет независимую программу подбора пар.
type Program string

const (
	// ProgramConnect - основная программа подбора (исторически "pairConnect").
	ProgramConnect Program = "Connect"

	// ProgramHaven - программа "Haven".
	ProgramHaven Program = "Haven"

	// ProgramLink - программа "Link".
	ProgramLink Program = "Link"
)

// AllPrograms возвращает программы в каноническом порядке.
// Порядок используется в отчёте о совместимости.
func AllPrograms() []Program {
	return []Program{ProgramConnect, ProgramHaven, ProgramLink}
}

// IsValid проверяет, что программа известна.
func (p Program) IsValid() bool {
	switch p {
	case ProgramConnect, ProgramHaven, ProgramLink:
		return true
	}
	return false
}

// String возвращает строковое представление программы.
func (p Program) String() string {
	return string(p)
}

// ParseProgram разбирает каноническое или историческое написание программы.
// "Connect", "connect", "pairConnect" и "PairConnect" дают ProgramConnect.
func ParseProgram(s string) (Program, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "pair")
	switch v {
	case "connect":
		return ProgramConnect, nil
	case "haven":
		return ProgramHaven, nil
	case "link":
		return ProgramLink, nil
	}
	return "", shared.ErrInvalidProgram
}

// Role представляет роль участника в паре.
type Role string

const (
	// RoleHost - принимающая сторона (семья с детьми).
	RoleHost Role = "host"

	// RoleCandidate - кандидат.
	RoleCandidate Role = "candidate"
)

// IsValid проверяет корректность роли.
func (r Role) IsValid() bool {
	return r == RoleHost || r == RoleCandidate
}

// String возвращает строковое представление роли.
func (r Role) String() string {
	return string(r)
}

// Counterpart возвращает роль, с которой образуется пара.
func (r Role) Counterpart() Role {
	if r == RoleHost {
		return RoleCandidate
	}
	return RoleHost
}

// ParseRole разбирает роль, включая исторические названия "hostFamily" и "auPair".
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host", "hostfamily":
		return RoleHost, true
	case "candidate", "aupair":
		return RoleCandidate, true
	}
	return "", false
}

// ProgramState описывает участие профиля в одной программе.
type ProgramState struct {
	Enabled bool `json:"enabled"`
	Paused  bool `json:"paused"`
}

// Active возвращает true, если программа включена и не на паузе.
func (s ProgramState) Active() bool {
	return s.Enabled && !s.Paused
}

// Programs - набор программ профиля.
type Programs map[Program]ProgramState

// Enabled проверяет, включена ли программа (пауза не учитывается).
func (p Programs) Enabled(program Program) bool {
	return p[program].Enabled
}

// Active проверяет, активна ли программа.
func (p Programs) Active(program Program) bool {
	return p[program].Active()
}

// Location - местоположение участника.
type Location struct {
	Country string `json:"country"`
	State   string `json:"state"`
	City    string `json:"city"`
}

// Child - ребёнок принимающей семьи.
type Child struct {
	Age          int      `json:"age"`
	Interests    []string `json:"interests"`
	Temperaments []string `json:"temperaments"`
}

// ScheduleSlot - элемент расписания принимающей семьи.
type ScheduleSlot struct {
	Time     string `json:"time"`
	Activity string `json:"activity"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SUB-PROFILES
// ══════════════════════════════════════════════════════════════════════════════

// HostProfile - профиль принимающей стороны.
type HostProfile struct {
	Programs          Programs                  `json:"programs"`
	PrimaryLanguage   string                    `json:"primaryLanguage"`
	SecondaryLanguage string                    `json:"secondaryLanguage"`
	Religion          string                    `json:"religion"`
	Pets              []string                  `json:"pets"`
	Children          []Child                   `json:"children"`
	Schedule          map[string][]ScheduleSlot `json:"schedule"`
	Location          Location                  `json:"location"`
	AvailabilityDate  string                    `json:"availabilityDate"`
}

// Languages возвращает непустые основной и дополнительный языки.
func (h *HostProfile) Languages() []string {
	langs := make([]string, 0, 2)
	for _, l := range []string{h.PrimaryLanguage, h.SecondaryLanguage} {
		if l = shared.NormalizeToken(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

// ChildInterests возвращает объединённые интересы всех детей.
func (h *HostProfile) ChildInterests() []string {
	var out []string
	for _, c := range h.Children {
		out = append(out, c.Interests...)
	}
	return out
}

// ChildTemperaments возвращает объединённые темпераменты всех детей.
func (h *HostProfile) ChildTemperaments() []string {
	var out []string
	for _, c := range h.Children {
		out = append(out, c.Temperaments...)
	}
	return out
}

// AverageChildAge возвращает средний возраст детей.
// Второе значение false, если детей нет.
func (h *HostProfile) AverageChildAge() (float64, bool) {
	if len(h.Children) == 0 {
		return 0, false
	}
	total := 0
	for _, c := range h.Children {
		total += c.Age
	}
	return float64(total) / float64(len(h.Children)), true
}

// HasSchedule проверяет, что в расписании есть хотя бы один слот.
func (h *HostProfile) HasSchedule() bool {
	for _, slots := range h.Schedule {
		if len(slots) > 0 {
			return true
		}
	}
	return false
}

func (h *HostProfile) normalize() {
	if h.Programs == nil {
		h.Programs = Programs{}
	}
	if h.Pets == nil {
		h.Pets = []string{}
	}
	if h.Children == nil {
		h.Children = []Child{}
	}
	for i := range h.Children {
		if h.Children[i].Interests == nil {
			h.Children[i].Interests = []string{}
		}
		if h.Children[i].Temperaments == nil {
			h.Children[i].Temperaments = []string{}
		}
	}
	if h.Schedule == nil {
		h.Schedule = map[string][]ScheduleSlot{}
	}
}

// CandidateProfile - профиль кандидата.
type CandidateProfile struct {
	Programs         Programs `json:"programs"`
	Age              int      `json:"age"`
	Languages        []string `json:"languages"`
	Pets             []string `json:"pets"`
	Temperaments     []string `json:"temperaments"`
	ThingsILove      []string `json:"thingsILove"`
	Religion         string   `json:"religion"`
	AvailabilityDate string   `json:"availabilityDate"`
	Location         Location `json:"location"`
}

func (c *CandidateProfile) normalize() {
	if c.Programs == nil {
		c.Programs = Programs{}
	}
	if c.Languages == nil {
		c.Languages = []string{}
	}
	if c.Pets == nil {
		c.Pets = []string{}
	}
	if c.Temperaments == nil {
		c.Temperaments = []string{}
	}
	if c.ThingsILove == nil {
		c.ThingsILove = []string{}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPANT AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// Participant - агрегат участника.
// Host и Candidate образуют размеченное объединение: заполнена любая
// комбинация ветвей, включая ни одной.
type Participant struct {
	ID          ParticipantID     `json:"id"`
	DisplayName string            `json:"displayName"`
	Host        *HostProfile      `json:"host,omitempty"`
	Candidate   *CandidateProfile `json:"candidate,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// NewParticipantParams - параметры для создания участника.
type NewParticipantParams struct {
	ID          string
	DisplayName string
	Host        *HostProfile
	Candidate   *CandidateProfile
}

// NewParticipant создаёт нормализованного участника с валидацией.
func NewParticipant(params NewParticipantParams) (*Participant, error) {
	id := ParticipantID(params.ID)
	if !id.IsValid() {
		return nil, shared.ErrInvalidParticipantID
	}

	now := time.Now().UTC()
	p := &Participant{
		ID:          id,
		DisplayName: strings.TrimSpace(params.DisplayName),
		Host:        params.Host,
		Candidate:   params.Candidate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Normalize()
	return p, nil
}

// Validate проверяет, что программы профилей известны.
func (p *Participant) Validate() error {
	if !p.ID.IsValid() {
		return shared.ErrInvalidParticipantID
	}
	for _, role := range p.Roles() {
		for program := range p.programs(role) {
			if !program.IsValid() {
				return shared.ErrInvalidProgram
			}
		}
	}
	if p.Candidate != nil && p.Candidate.Age < 0 {
		return shared.WrapError("participant", "Validate", shared.ErrNegativeValue, "candidate age cannot be negative", nil)
	}
	if p.Host != nil {
		for _, c := range p.Host.Children {
			if c.Age < 0 {
				return shared.WrapError("participant", "Validate", shared.ErrNegativeValue, "child age cannot be negative", nil)
			}
		}
	}
	return nil
}

// Normalize заменяет все nil-срезы и nil-карты пустыми значениями.
// После вызова ни одно вложенное поле заполненной ветви не остаётся неопределённым.
func (p *Participant) Normalize() {
	if p.Host != nil {
		p.Host.normalize()
	}
	if p.Candidate != nil {
		p.Candidate.normalize()
	}
}

// Roles возвращает заполненные ветви профиля.
func (p *Participant) Roles() []Role {
	roles := make([]Role, 0, 2)
	if p.Host != nil {
		roles = append(roles, RoleHost)
	}
	if p.Candidate != nil {
		roles = append(roles, RoleCandidate)
	}
	return roles
}

// HasRole проверяет наличие ветви профиля.
func (p *Participant) HasRole(role Role) bool {
	switch role {
	case RoleHost:
		return p.Host != nil
	case RoleCandidate:
		return p.Candidate != nil
	}
	return false
}

// IsRoleActive проверяет, что ветвь роли существует и программа в ней активна.
func (p *Participant) IsRoleActive(role Role, program Program) bool {
	return p.programs(role).Active(program)
}

// ActiveRoles возвращает роли, в которых программа активна.
func (p *Participant) ActiveRoles(program Program) []Role {
	var roles []Role
	for _, r := range p.Roles() {
		if p.IsRoleActive(r, program) {
			roles = append(roles, r)
		}
	}
	return roles
}

// SetPaused ставит программу роли на паузу или снимает с неё.
// Программа должна быть включена в этой ветви.
func (p *Participant) SetPaused(role Role, program Program, paused bool) error {
	programs := p.programs(role)
	if programs == nil || !programs.Enabled(program) {
		return shared.ErrProgramNotActive
	}
	state := programs[program]
	state.Paused = paused
	programs[program] = state
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// EnabledPrograms возвращает включённые программы роли в каноническом порядке.
func (p *Participant) EnabledPrograms(role Role) []Program {
	programs := p.programs(role)
	out := make([]Program, 0, len(programs))
	for _, program := range AllPrograms() {
		if programs.Enabled(program) {
			out = append(out, program)
		}
	}
	return out
}

func (p *Participant) programs(role Role) Programs {
	switch role {
	case RoleHost:
		if p.Host != nil {
			return p.Host.Programs
		}
	case RoleCandidate:
		if p.Candidate != nil {
			return p.Candidate.Programs
		}
	}
	return nil
}

// IsProgramActive проверяет, что у участника есть ветвь, активная в программе.
func IsProgramActive(p *Participant, program Program) bool {
	if p == nil {
		return false
	}
	return len(p.ActiveRoles(program)) > 0
}

// SortByID сортирует участников по ID.
func SortByID(ps []*Participant) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}
