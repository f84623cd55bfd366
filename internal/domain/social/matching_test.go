package social

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
)

func connectOnly() participant.Programs {
	return participant.Programs{participant.ProgramConnect: {Enabled: true}}
}

func scenarioHost() *participant.Participant {
	return &participant.Participant{
		ID: "host-1",
		Host: &participant.HostProfile{
			Programs:        connectOnly(),
			PrimaryLanguage: "English",
			Pets:            []string{"dog"},
		},
	}
}

func scenarioCandidate() *participant.Participant {
	return &participant.Participant{
		ID: "cand-1",
		Candidate: &participant.CandidateProfile{
			Programs:  connectOnly(),
			Languages: []string{"English", "French"},
			Pets:      []string{"dog"},
		},
	}
}

func fullHost() *participant.Participant {
	return &participant.Participant{
		ID: "host-full",
		Host: &participant.HostProfile{
			Programs: participant.Programs{
				participant.ProgramConnect: {Enabled: true},
				participant.ProgramHaven:   {Enabled: true, Paused: true},
			},
			PrimaryLanguage:   "Spanish",
			SecondaryLanguage: "English",
			Religion:          "Christian",
			Pets:              []string{"cat", "dog"},
			Children: []participant.Child{
				{Age: 6, Interests: []string{"music", "soccer"}, Temperaments: []string{"calm"}},
				{Age: 10, Interests: []string{"art"}, Temperaments: []string{"curious"}},
			},
			Schedule: map[string][]participant.ScheduleSlot{
				"monday": {{Time: "08:00", Activity: "school run"}},
			},
			Location: participant.Location{Country: "US", State: "CA", City: "San Diego"},
		},
	}
}

func fullCandidate() *participant.Participant {
	return &participant.Participant{
		ID: "cand-full",
		Candidate: &participant.CandidateProfile{
			Programs: participant.Programs{
				participant.ProgramConnect: {Enabled: true},
				participant.ProgramHaven:   {Enabled: true},
			},
			Age:              22,
			Languages:        []string{"English", "German"},
			Pets:             []string{"dog"},
			Temperaments:     []string{"curious", "calm"},
			ThingsILove:      []string{"art", "hiking", "music"},
			Religion:         "Christian",
			AvailabilityDate: "2026-09-01",
			Location:         participant.Location{Country: "US", State: "NY", City: "Albany"},
		},
	}
}

func TestScorer(t *testing.T) {
	convey.Convey("Given a scorer with the default policy", t, func() {
		scorer := NewScorer(DefaultScoringPolicy())

		convey.Convey("When a host and a candidate share a program, a language and a pet", func() {
			report := scorer.Score(scenarioHost(), scenarioCandidate())

			convey.Convey("Then exactly three checks are satisfied", func() {
				convey.So(report.SharedPlatforms, convey.ShouldResemble, []participant.Program{participant.ProgramConnect})
				convey.So(report.SharedLanguages, convey.ShouldResemble, []string{"English"})
				convey.So(report.PetCompatibility, convey.ShouldBeTrue)
				convey.So(report.SatisfiedChecks(), convey.ShouldEqual, 3)
				convey.So(report.MatchPercentage, convey.ShouldEqual, 33)
			})

			convey.Convey("And the argument order does not matter", func() {
				convey.So(scorer.Score(scenarioCandidate(), scenarioHost()), convey.ShouldResemble, report)
			})

			convey.Convey("And repeated calls are identical", func() {
				convey.So(scorer.Score(scenarioHost(), scenarioCandidate()), convey.ShouldResemble, report)
			})
		})

		convey.Convey("When every check is satisfied", func() {
			report := scorer.Score(fullHost(), fullCandidate())

			convey.Convey("Then the percentage is 100", func() {
				convey.So(report.SharedPlatforms, convey.ShouldResemble, []participant.Program{participant.ProgramConnect, participant.ProgramHaven})
				convey.So(report.SharedLanguages, convey.ShouldResemble, []string{"English"})
				convey.So(report.SharedInterests, convey.ShouldResemble, []string{"art", "music"})
				convey.So(report.SharedTemperaments, convey.ShouldResemble, []string{"curious", "calm"})
				convey.So(report.LocationCompatibility.SameCountry, convey.ShouldBeTrue)
				convey.So(report.LocationCompatibility.SameState, convey.ShouldBeFalse)
				convey.So(report.AgeCompatibility, convey.ShouldBeTrue)
				convey.So(report.ReligionCompatibility, convey.ShouldBeTrue)
				convey.So(report.ScheduleCompatibility, convey.ShouldBeTrue)
				convey.So(report.MatchPercentage, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When both sides have only empty sub-profiles", func() {
			host := &participant.Participant{ID: "h", Host: &participant.HostProfile{}}
			cand := &participant.Participant{ID: "c", Candidate: &participant.CandidateProfile{}}
			report := scorer.Score(host, cand)

			convey.Convey("Then nothing matches and lists are empty, not nil", func() {
				convey.So(report.MatchPercentage, convey.ShouldEqual, 0)
				convey.So(report.SharedPlatforms, convey.ShouldNotBeNil)
				convey.So(report.SharedLanguages, convey.ShouldNotBeNil)
				convey.So(report.SharedInterests, convey.ShouldNotBeNil)
				convey.So(report.SharedTemperaments, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When neither orientation applies", func() {
			a := &participant.Participant{ID: "a", Host: &participant.HostProfile{Programs: connectOnly()}}
			b := &participant.Participant{ID: "b", Host: &participant.HostProfile{Programs: connectOnly()}}

			convey.Convey("Then the report is all false", func() {
				convey.So(scorer.Score(a, b), convey.ShouldResemble, EmptyReport())
			})
		})

		convey.Convey("When both orientations apply", func() {
			a := fullHost()
			a.Candidate = fullCandidate().Candidate
			b := fullCandidate()
			b.Host = fullHost().Host

			convey.Convey("Then the report is all false", func() {
				convey.So(scorer.Score(a, b), convey.ShouldResemble, EmptyReport())
			})
		})

		convey.Convey("When a participant is nil", func() {
			convey.Convey("Then the report is all false", func() {
				convey.So(scorer.Score(nil, scenarioCandidate()), convey.ShouldResemble, EmptyReport())
			})
		})

		convey.Convey("When the candidate's age is outside the window", func() {
			cand := fullCandidate()
			cand.Candidate.Age = 40

			convey.Convey("Then the age check fails", func() {
				convey.So(scorer.Score(fullHost(), cand).AgeCompatibility, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When only the candidate enables Link", func() {
			cand := scenarioCandidate()
			cand.Candidate.Programs[participant.ProgramLink] = participant.ProgramState{Enabled: true}

			convey.Convey("Then Link is not shared", func() {
				report := scorer.Score(scenarioHost(), cand)
				convey.So(report.SharedPlatforms, convey.ShouldResemble, []participant.Program{participant.ProgramConnect})
			})

			convey.Convey("And the legacy policy counts it as shared", func() {
				policy := DefaultScoringPolicy()
				policy.LinkRequiresBothSides = false
				report := NewScorer(policy).Score(scenarioHost(), cand)
				convey.So(report.SharedPlatforms, convey.ShouldResemble, []participant.Program{participant.ProgramConnect, participant.ProgramLink})
			})
		})

		convey.Convey("When the candidate has no availability date", func() {
			cand := fullCandidate()
			cand.Candidate.AvailabilityDate = ""

			convey.Convey("Then the schedule check depends on the rule", func() {
				convey.So(scorer.Score(fullHost(), cand).ScheduleCompatibility, convey.ShouldBeFalse)

				policy := DefaultScoringPolicy()
				policy.ScheduleRule = ScheduleOnly
				convey.So(NewScorer(policy).Score(fullHost(), cand).ScheduleCompatibility, convey.ShouldBeTrue)
			})
		})
	})
}

func TestChecklistOrder(t *testing.T) {
	convey.Convey("Given any report", t, func() {
		checks := EmptyReport().Checklist()

		convey.Convey("Then the checklist has nine checks in contract order", func() {
			names := make([]string, 0, len(checks))
			for _, c := range checks {
				names = append(names, c.Name)
			}
			convey.So(names, convey.ShouldResemble, []string{
				"platforms", "languages", "interests", "temperaments",
				"sameCountry", "age", "pets", "religion", "schedule",
			})
			convey.So(len(checks), convey.ShouldEqual, TotalChecks)
		})
	})
}
