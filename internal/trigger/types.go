// Package trigger contains the activation state machine. The controller is
// driven by explicit events and is not safe for concurrent use; the host
// delivers events one at a time.
package trigger

import (
	"time"

	"github.com/sweeney/glade/internal/schedule"
)

// Source identifies what requested an activation.
type Source string

const (
	SourceTimer  Source = "timer"
	SourceButton Source = "button"
	SourceRemote Source = "remote"
)

// Event is an input to the controller.
type Event string

const (
	EventTick   Event = "tick"
	EventButton Event = "button"
	EventRemote Event = "remote"
	EventRearm  Event = "rearm"
)

// Source returns the activation source for a trigger event.
// EventRearm and unknown events report false.
func (e Event) Source() (Source, bool) {
	switch e {
	case EventTick:
		return SourceTimer, true
	case EventButton:
		return SourceButton, true
	case EventRemote:
		return SourceRemote, true
	}
	return "", false
}

// Reason explains why a trigger request was not accepted.
type Reason string

const (
	ReasonAlreadyActive Reason = "already_active"
	ReasonUnknownEvent  Reason = "unknown_event"
)

func reasonFromVerdict(v schedule.Verdict) Reason {
	return Reason(v)
}

// Controller states.
const (
	StateIdle   = "idle"
	StateActive = "active"
)

// Timings fixed by the device design.
const (
	// RearmDelay is how long the output stays asserted after an activation.
	RearmDelay = 10 * time.Second
	// StartupDelay is when the first schedule check runs after Start.
	StartupDelay = 10 * time.Second
)

// Activation is one recorded idle to active transition.
type Activation struct {
	Timestamp time.Time
	Epoch     uint64
	Source    Source
}

// Outcome reports what a dispatched event did.
type Outcome struct {
	Event    Event
	Source   Source
	Accepted bool
	// Reason is set when a trigger event was not accepted.
	Reason Reason
	// Activation is set when Accepted.
	Activation *Activation
	// Released is set when a rearm event returned the controller to idle.
	Released bool
}

// Update is a settings change request. Day and hour masks are not
// changed by updates.
type Update struct {
	Interval int
	Active   bool
}

// UpdateResult reports the effect of an Update.
type UpdateResult struct {
	// Changed is true if the persisted settings changed.
	Changed bool
	// IntervalCorrected is true if the requested interval was out of
	// range and replaced by schedule.FallbackInterval.
	IntervalCorrected bool
	// Schedule is the schedule in effect after the update.
	Schedule schedule.Schedule
}

// Clock supplies the current time in the device time zone.
type Clock interface {
	Now() time.Time
}

// Output is the activation pin.
type Output interface {
	Assert() error
	Deassert() error
}

// Scheduler delivers events to the controller after a delay.
type Scheduler interface {
	Once(d time.Duration, ev Event)
	Repeat(d time.Duration, ev Event) (cancel func())
}

// SettingsSaver persists a schedule.
type SettingsSaver interface {
	Save(schedule.Schedule) error
}
