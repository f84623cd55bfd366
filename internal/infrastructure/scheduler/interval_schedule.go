package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job at a fixed interval.
// With Immediate set, the first run is due on the first tick after registration.
type IntervalSchedule struct {
	Interval  time.Duration
	Immediate bool

	fired bool
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration, immediate bool) *IntervalSchedule {
	return &IntervalSchedule{
		Interval:  interval,
		Immediate: immediate,
	}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	if s.Immediate && !s.fired {
		s.fired = true
		return t
	}
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	if s.Immediate {
		return fmt.Sprintf("@every %s (immediate)", s.Interval)
	}
	return fmt.Sprintf("@every %s", s.Interval)
}
