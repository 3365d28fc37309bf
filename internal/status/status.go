// Package status provides a thread-safe status tracker for the glade daemon.
// It is written by the device loop and read by HTTP handlers and MQTT
// system events.
package status

import (
	"slices"
	"sync"
	"time"

	"github.com/sweeney/glade/internal/schedule"
	"github.com/sweeney/glade/internal/trigger"
)

// NetworkInfo contains network state reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Hostname         string
	Version          string
	Broker           string
	TopicRoot        string
	HTTPAddr         string
	Timezone         string
	HeartbeatMs      int64
	ButtonPollMs     int64
	ButtonDebounceMs int64
}

// Counts tracks trigger requests since startup.
type Counts struct {
	Timer    int
	Button   int
	Remote   int
	Rejected int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Active        bool
	Schedule      schedule.Schedule
	History       []uint64
	LastTrigger   *trigger.Activation
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetClock replaces the time source used for Snapshot.Now.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Update sets controller state. Called by the device loop after every event.
func (t *Tracker) Update(active bool, sch schedule.Schedule, history []uint64) {
	t.mu.Lock()
	t.snap.Active = active
	t.snap.Schedule = sch
	t.snap.History = slices.Clone(history)
	t.mu.Unlock()
}

// RecordOutcome counts a trigger request.
func (t *Tracker) RecordOutcome(o trigger.Outcome) {
	if o.Source == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !o.Accepted {
		t.snap.Counts.Rejected++
		return
	}
	switch o.Source {
	case trigger.SourceTimer:
		t.snap.Counts.Timer++
	case trigger.SourceButton:
		t.snap.Counts.Button++
	case trigger.SourceRemote:
		t.snap.Counts.Remote++
	}
	if o.Activation != nil {
		a := *o.Activation
		t.snap.LastTrigger = &a
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.History = slices.Clone(t.snap.History)
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}
