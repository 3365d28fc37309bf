// Package schedule describes when the trigger may fire on its own.
// This package has NO external dependencies and never reads the clock;
// callers pass the weekday and hour to evaluate.
package schedule

import "time"

// Interval bounds, in seconds.
const (
	MinInterval      = 30
	MaxInterval      = 65000
	FallbackInterval = 600 // used in place of an out-of-range interval
	DefaultInterval  = 60
)

// Schedule is the set of rules governing timer-driven activation.
type Schedule struct {
	Active   bool
	Days     [7]bool  // indexed by time.Weekday, Sunday = 0
	Hours    [24]bool // indexed by hour of day, 0-23
	Interval uint16   // seconds between timer checks
}

// Verdict is the result of evaluating a Schedule at a point in time.
type Verdict string

const (
	Allowed      Verdict = "allowed"
	Inactive     Verdict = "inactive"
	DayDisabled  Verdict = "day_disabled"
	HourDisabled Verdict = "hour_disabled"
)

// Default returns the factory schedule: active every day from 08:00 to
// 21:59, checked every 60 seconds.
func Default() Schedule {
	s := Schedule{
		Active:   true,
		Interval: DefaultInterval,
	}
	for d := range s.Days {
		s.Days[d] = true
	}
	for h := 8; h <= 21; h++ {
		s.Hours[h] = true
	}
	return s
}

// Evaluate reports whether the schedule permits activation on weekday at
// hour, and if not, which rule refused it. The active flag is checked
// first, then the day, then the hour.
func (s Schedule) Evaluate(weekday time.Weekday, hour int) Verdict {
	if !s.Active {
		return Inactive
	}
	if weekday < time.Sunday || weekday > time.Saturday || !s.Days[weekday] {
		return DayDisabled
	}
	if hour < 0 || hour > 23 || !s.Hours[hour] {
		return HourDisabled
	}
	return Allowed
}

// AllowedAt reports whether activation is permitted on weekday at hour.
func (s Schedule) AllowedAt(weekday time.Weekday, hour int) bool {
	return s.Evaluate(weekday, hour) == Allowed
}

// Period returns the interval as a duration.
func (s Schedule) Period() time.Duration {
	return time.Duration(s.Interval) * time.Second
}

// ValidateInterval returns raw if it lies within [MinInterval, MaxInterval].
// Otherwise it returns FallbackInterval and corrected is true.
func ValidateInterval(raw int) (interval uint16, corrected bool) {
	if raw < MinInterval || raw > MaxInterval {
		return FallbackInterval, true
	}
	return uint16(raw), false
}
