package participant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
)

func TestParseProgram(t *testing.T) {
	tests := []struct {
		in   string
		want Program
	}{
		{"Connect", ProgramConnect},
		{"connect", ProgramConnect},
		{"pairConnect", ProgramConnect},
		{"PairConnect", ProgramConnect},
		{"pairHaven", ProgramHaven},
		{" Link ", ProgramLink},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProgram(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseProgram("pairDate")
	assert.ErrorIs(t, err, shared.ErrInvalidProgram)
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("hostFamily")
	assert.True(t, ok)
	assert.Equal(t, RoleHost, r)

	r, ok = ParseRole("auPair")
	assert.True(t, ok)
	assert.Equal(t, RoleCandidate, r)
	assert.Equal(t, RoleHost, r.Counterpart())

	_, ok = ParseRole("admin")
	assert.False(t, ok)
}

func TestNewParticipant_Normalizes(t *testing.T) {
	p, err := NewParticipant(NewParticipantParams{
		ID:          "p-1",
		DisplayName: "  The Smiths ",
		Host: &HostProfile{
			Children: []Child{{Age: 4}},
		},
		Candidate: &CandidateProfile{},
	})
	require.NoError(t, err)

	assert.Equal(t, "The Smiths", p.DisplayName)
	assert.NotNil(t, p.Host.Programs)
	assert.NotNil(t, p.Host.Pets)
	assert.NotNil(t, p.Host.Schedule)
	assert.NotNil(t, p.Host.Children[0].Interests)
	assert.NotNil(t, p.Host.Children[0].Temperaments)
	assert.NotNil(t, p.Candidate.Languages)
	assert.NotNil(t, p.Candidate.ThingsILove)
	assert.Equal(t, []Role{RoleHost, RoleCandidate}, p.Roles())
}

func TestNewParticipant_Rejects(t *testing.T) {
	_, err := NewParticipant(NewParticipantParams{ID: ""})
	assert.ErrorIs(t, err, shared.ErrInvalidParticipantID)

	_, err = NewParticipant(NewParticipantParams{ID: "a:b"})
	assert.ErrorIs(t, err, shared.ErrInvalidParticipantID)

	_, err = NewParticipant(NewParticipantParams{
		ID:        "p-2",
		Candidate: &CandidateProfile{Programs: Programs{"Dating": {Enabled: true}}},
	})
	assert.ErrorIs(t, err, shared.ErrInvalidProgram)

	_, err = NewParticipant(NewParticipantParams{
		ID:        "p-3",
		Candidate: &CandidateProfile{Age: -1},
	})
	assert.True(t, shared.IsValidation(err))
}

func TestProgramActivity(t *testing.T) {
	p, err := NewParticipant(NewParticipantParams{
		ID: "p-1",
		Host: &HostProfile{Programs: Programs{
			ProgramConnect: {Enabled: true},
			ProgramHaven:   {Enabled: true, Paused: true},
		}},
	})
	require.NoError(t, err)

	assert.True(t, IsProgramActive(p, ProgramConnect))
	assert.False(t, IsProgramActive(p, ProgramHaven))
	assert.False(t, IsProgramActive(p, ProgramLink))
	assert.False(t, IsProgramActive(nil, ProgramConnect))
	assert.False(t, p.IsRoleActive(RoleCandidate, ProgramConnect))
	assert.Equal(t, []Program{ProgramConnect, ProgramHaven}, p.EnabledPrograms(RoleHost))

	require.NoError(t, p.SetPaused(RoleHost, ProgramHaven, false))
	assert.True(t, IsProgramActive(p, ProgramHaven))

	require.NoError(t, p.SetPaused(RoleHost, ProgramConnect, true))
	assert.Equal(t, []Role(nil), p.ActiveRoles(ProgramConnect))

	assert.ErrorIs(t, p.SetPaused(RoleHost, ProgramLink, true), shared.ErrProgramNotActive)
	assert.ErrorIs(t, p.SetPaused(RoleCandidate, ProgramConnect, true), shared.ErrProgramNotActive)
}

func TestHostProfileHelpers(t *testing.T) {
	h := &HostProfile{
		PrimaryLanguage:   "English",
		SecondaryLanguage: " ",
		Children: []Child{
			{Age: 4, Interests: []string{"lego"}, Temperaments: []string{"shy"}},
			{Age: 8, Interests: []string{"swim"}},
		},
	}
	assert.Equal(t, []string{"English"}, h.Languages())
	assert.Equal(t, []string{"lego", "swim"}, h.ChildInterests())
	assert.Equal(t, []string{"shy"}, h.ChildTemperaments())

	avg, ok := h.AverageChildAge()
	assert.True(t, ok)
	assert.InDelta(t, 6.0, avg, 0.0001)

	assert.False(t, h.HasSchedule())
	h.Schedule = map[string][]ScheduleSlot{"monday": {}}
	assert.False(t, h.HasSchedule())
	h.Schedule["tuesday"] = []ScheduleSlot{{Time: "09:00", Activity: "pickup"}}
	assert.True(t, h.HasSchedule())
}
