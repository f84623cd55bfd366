package social

import (
	"math"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCHING POLICY
//
// Совместимость принимающей стороны и кандидата оценивается по
// фиксированному упорядоченному чек-листу из 9 проверок. Порядок и
// состав чек-листа - часть контракта. Формулы отдельных проверок
// задаются политикой (ScoringPolicy), а не зашиты в код.
// ══════════════════════════════════════════════════════════════════════════════

// Названия проверок в порядке чек-листа.
const (
	CheckPlatforms    = "platforms"
	CheckLanguages    = "languages"
	CheckInterests    = "interests"
	CheckTemperaments = "temperaments"
	CheckSameCountry  = "sameCountry"
	CheckAge          = "age"
	CheckPets         = "pets"
	CheckReligion     = "religion"
	CheckSchedule     = "schedule"
)

// TotalChecks - число проверок в чек-листе.
const TotalChecks = 9

// ScheduleRule определяет формулу проверки расписания.
type ScheduleRule string

const (
	// ScheduleAndAvailability - у семьи есть расписание и у кандидата указана дата доступности.
	ScheduleAndAvailability ScheduleRule = "schedule_and_availability"

	// ScheduleOnly - достаточно наличия расписания у семьи.
	ScheduleOnly ScheduleRule = "schedule_only"
)

// IsValid проверяет правило.
func (r ScheduleRule) IsValid() bool {
	return r == ScheduleAndAvailability || r == ScheduleOnly
}

// DefaultAgeWindowYears - допустимая разница между возрастом кандидата и средним возрастом детей.
const DefaultAgeWindowYears = 15

// ScoringPolicy - настраиваемые формулы проверок.
type ScoringPolicy struct {
	// AgeWindowYears - окно |возраст кандидата - средний возраст детей|.
	AgeWindowYears int

	// LinkRequiresBothSides - Link общий, только если включён у обеих сторон.
	// false воспроизводит историческое правило "Link включён у кандидата".
	LinkRequiresBothSides bool

	// ScheduleRule - формула проверки расписания.
	ScheduleRule ScheduleRule
}

// DefaultScoringPolicy возвращает политику по умолчанию.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		AgeWindowYears:        DefaultAgeWindowYears,
		LinkRequiresBothSides: true,
		ScheduleRule:          ScheduleAndAvailability,
	}
}

// Validate проверяет политику.
func (p ScoringPolicy) Validate() error {
	if p.AgeWindowYears < 0 {
		return shared.NewDomainError("social", "ValidatePolicy", shared.ErrNegativeValue, "age window cannot be negative")
	}
	if !p.ScheduleRule.IsValid() {
		return shared.NewDomainError("social", "ValidatePolicy", shared.ErrInvalidInput, "unknown schedule rule")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS FOR MATCHING
// ══════════════════════════════════════════════════════════════════════════════

// MatchScore представляет оценку совместимости (0-100).
type MatchScore int

// IsValid проверяет корректность оценки.
func (m MatchScore) IsValid() bool {
	return m >= 0 && m <= 100
}

// Quality возвращает качественную оценку совместимости.
func (m MatchScore) Quality() MatchQuality {
	switch {
	case m >= 80:
		return MatchQualityExcellent
	case m >= 60:
		return MatchQualityGood
	case m >= 40:
		return MatchQualityFair
	case m >= 20:
		return MatchQualityPoor
	default:
		return MatchQualityNone
	}
}

// MatchQuality определяет качество подбора.
type MatchQuality string

const (
	// MatchQualityExcellent - отличная совместимость (80-100).
	MatchQualityExcellent MatchQuality = "excellent"

	// MatchQualityGood - хорошая совместимость (60-79).
	MatchQualityGood MatchQuality = "good"

	// MatchQualityFair - удовлетворительная совместимость (40-59).
	MatchQualityFair MatchQuality = "fair"

	// MatchQualityPoor - низкая совместимость (20-39).
	MatchQualityPoor MatchQuality = "poor"

	// MatchQualityNone - нет совместимости (0-19).
	MatchQualityNone MatchQuality = "none"
)

// LocationCompatibility - совпадение местоположения по уровням.
type LocationCompatibility struct {
	SameCountry bool `json:"sameCountry"`
	SameState   bool `json:"sameState"`
	SameCity    bool `json:"sameCity"`
}

// CommonalityReport - детерминированный отчёт о совместимости пары.
type CommonalityReport struct {
	SharedPlatforms       []participant.Program `json:"sharedPlatforms"`
	SharedLanguages       []string              `json:"sharedLanguages"`
	SharedInterests       []string              `json:"sharedInterests"`
	SharedTemperaments    []string              `json:"sharedTemperaments"`
	LocationCompatibility LocationCompatibility `json:"locationCompatibility"`
	AgeCompatibility      bool                  `json:"ageCompatibility"`
	PetCompatibility      bool                  `json:"petCompatibility"`
	ReligionCompatibility bool                  `json:"religionCompatibility"`
	ScheduleCompatibility bool                  `json:"scheduleCompatibility"`
	MatchPercentage       int                   `json:"matchPercentage"`
}

// Check - одна проверка чек-листа.
type Check struct {
	Name      string `json:"name"`
	Satisfied bool   `json:"satisfied"`
}

// EmptyReport возвращает отчёт, где все проверки ложны.
func EmptyReport() CommonalityReport {
	return CommonalityReport{
		SharedPlatforms:    []participant.Program{},
		SharedLanguages:    []string{},
		SharedInterests:    []string{},
		SharedTemperaments: []string{},
	}
}

// Checklist возвращает проверки в порядке контракта.
func (r CommonalityReport) Checklist() []Check {
	return []Check{
		{Name: CheckPlatforms, Satisfied: len(r.SharedPlatforms) > 0},
		{Name: CheckLanguages, Satisfied: len(r.SharedLanguages) > 0},
		{Name: CheckInterests, Satisfied: len(r.SharedInterests) > 0},
		{Name: CheckTemperaments, Satisfied: len(r.SharedTemperaments) > 0},
		{Name: CheckSameCountry, Satisfied: r.LocationCompatibility.SameCountry},
		{Name: CheckAge, Satisfied: r.AgeCompatibility},
		{Name: CheckPets, Satisfied: r.PetCompatibility},
		{Name: CheckReligion, Satisfied: r.ReligionCompatibility},
		{Name: CheckSchedule, Satisfied: r.ScheduleCompatibility},
	}
}

// SatisfiedChecks возвращает число выполненных проверок.
func (r CommonalityReport) SatisfiedChecks() int {
	n := 0
	for _, c := range r.Checklist() {
		if c.Satisfied {
			n++
		}
	}
	return n
}

// Score возвращает процент совпадения как MatchScore.
func (r CommonalityReport) Score() MatchScore {
	return MatchScore(r.MatchPercentage)
}

// Clone создаёт глубокую копию отчёта.
func (r CommonalityReport) Clone() CommonalityReport {
	clone := r
	clone.SharedPlatforms = append([]participant.Program{}, r.SharedPlatforms...)
	clone.SharedLanguages = append([]string{}, r.SharedLanguages...)
	clone.SharedInterests = append([]string{}, r.SharedInterests...)
	clone.SharedTemperaments = append([]string{}, r.SharedTemperaments...)
	return clone
}

// ToMap возвращает отчёт в виде карты для полезной нагрузки событий.
func (r CommonalityReport) ToMap() map[string]interface{} {
	platforms := make([]string, 0, len(r.SharedPlatforms))
	for _, p := range r.SharedPlatforms {
		platforms = append(platforms, p.String())
	}
	return map[string]interface{}{
		"sharedPlatforms":    platforms,
		"sharedLanguages":    r.SharedLanguages,
		"sharedInterests":    r.SharedInterests,
		"sharedTemperaments": r.SharedTemperaments,
		"locationCompatibility": map[string]bool{
			"sameCountry": r.LocationCompatibility.SameCountry,
			"sameState":   r.LocationCompatibility.SameState,
			"sameCity":    r.LocationCompatibility.SameCity,
		},
		"ageCompatibility":      r.AgeCompatibility,
		"petCompatibility":      r.PetCompatibility,
		"religionCompatibility": r.ReligionCompatibility,
		"scheduleCompatibility": r.ScheduleCompatibility,
		"matchPercentage":       r.MatchPercentage,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORER
// Чистая функция: нет часов, нет случайности, входы не изменяются.
// ══════════════════════════════════════════════════════════════════════════════

// Scorer вычисляет отчёт о совместимости двух профилей.
type Scorer struct {
	policy ScoringPolicy
}

// NewScorer создаёт оценщик. Невалидные поля политики заменяются значениями по умолчанию.
func NewScorer(policy ScoringPolicy) *Scorer {
	def := DefaultScoringPolicy()
	if policy.AgeWindowYears < 0 {
		policy.AgeWindowYears = def.AgeWindowYears
	}
	if !policy.ScheduleRule.IsValid() {
		policy.ScheduleRule = def.ScheduleRule
	}
	return &Scorer{policy: policy}
}

// Policy возвращает действующую политику.
func (s *Scorer) Policy() ScoringPolicy {
	return s.policy
}

// Score вычисляет отчёт для пары. Порядок аргументов не важен:
// роли определяются по заполненным ветвям профилей.
func (s *Scorer) Score(a, b *participant.Participant) CommonalityReport {
	host, candidate, ok := ResolveRoles(a, b)
	if !ok {
		return EmptyReport()
	}

	r := EmptyReport()
	r.SharedPlatforms = s.sharedPlatforms(host, candidate)
	r.SharedLanguages = intersect(candidate.Languages, host.Languages())
	r.SharedInterests = intersect(candidate.ThingsILove, host.ChildInterests())
	r.SharedTemperaments = intersect(candidate.Temperaments, host.ChildTemperaments())
	r.LocationCompatibility = LocationCompatibility{
		SameCountry: sameValue(host.Location.Country, candidate.Location.Country),
		SameState:   sameValue(host.Location.State, candidate.Location.State),
		SameCity:    sameValue(host.Location.City, candidate.Location.City),
	}
	r.AgeCompatibility = s.ageCompatible(host, candidate)
	r.PetCompatibility = len(intersect(candidate.Pets, host.Pets)) > 0
	r.ReligionCompatibility = sameValue(host.Religion, candidate.Religion)
	r.ScheduleCompatibility = s.scheduleCompatible(host, candidate)
	r.MatchPercentage = shared.PercentageOf(r.SatisfiedChecks(), TotalChecks).Int()
	return r
}

// ResolveRoles определяет, какая сторона - семья, а какая - кандидат.
// ok=false, если подходят обе ориентации или ни одной.
func ResolveRoles(a, b *participant.Participant) (*participant.HostProfile, *participant.CandidateProfile, bool) {
	if a == nil || b == nil {
		return nil, nil, false
	}
	aHosts := a.Host != nil && b.Candidate != nil
	bHosts := b.Host != nil && a.Candidate != nil
	switch {
	case aHosts && !bHosts:
		return a.Host, b.Candidate, true
	case bHosts && !aHosts:
		return b.Host, a.Candidate, true
	}
	return nil, nil, false
}

func (s *Scorer) sharedPlatforms(host *participant.HostProfile, candidate *participant.CandidateProfile) []participant.Program {
	out := []participant.Program{}
	for _, program := range participant.AllPrograms() {
		candidateHas := candidate.Programs.Enabled(program)
		if program == participant.ProgramLink && !s.policy.LinkRequiresBothSides {
			if candidateHas {
				out = append(out, program)
			}
			continue
		}
		if candidateHas && host.Programs.Enabled(program) {
			out = append(out, program)
		}
	}
	return out
}

func (s *Scorer) ageCompatible(host *participant.HostProfile, candidate *participant.CandidateProfile) bool {
	avg, ok := host.AverageChildAge()
	if !ok || candidate.Age <= 0 {
		return false
	}
	return math.Abs(float64(candidate.Age)-avg) <= float64(s.policy.AgeWindowYears)
}

func (s *Scorer) scheduleCompatible(host *participant.HostProfile, candidate *participant.CandidateProfile) bool {
	if !host.HasSchedule() {
		return false
	}
	if s.policy.ScheduleRule == ScheduleOnly {
		return true
	}
	return shared.NormalizeToken(candidate.AvailabilityDate) != ""
}

// intersect возвращает элементы left, встречающиеся в right, в порядке left.
// Пустые токены и повторы отбрасываются; результат никогда не nil.
func intersect(left, right []string) []string {
	set := make(map[string]struct{}, len(right))
	for _, v := range right {
		if v = shared.NormalizeToken(v); v != "" {
			set[v] = struct{}{}
		}
	}
	out := []string{}
	seen := make(map[string]struct{}, len(left))
	for _, v := range left {
		v = shared.NormalizeToken(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sameValue(a, b string) bool {
	a, b = shared.NormalizeToken(a), shared.NormalizeToken(b)
	return a != "" && a == b
}
