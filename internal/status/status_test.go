package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/glade/internal/schedule"
	"github.com/sweeney/glade/internal/trigger"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewTracker(t *testing.T) {
	cfg := Config{Hostname: "glade", Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.Hostname != "glade" {
		t.Errorf("Config.Hostname: got %q", snap.Config.Hostname)
	}
	if snap.Active {
		t.Error("expected Active=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.Update(true, schedule.Default(), []uint64{100, 200})

	snap := tr.Snapshot()
	if !snap.Active {
		t.Error("expected Active=true")
	}
	if snap.Schedule != schedule.Default() {
		t.Error("schedule not recorded")
	}
	if len(snap.History) != 2 || snap.History[1] != 200 {
		t.Errorf("History: got %v", snap.History)
	}
}

func TestRecordOutcome(t *testing.T) {
	tr := NewTracker(start, Config{})
	at := start.Add(time.Hour)

	tr.RecordOutcome(trigger.Outcome{Source: trigger.SourceTimer, Accepted: true})
	tr.RecordOutcome(trigger.Outcome{Source: trigger.SourceButton, Accepted: true})
	tr.RecordOutcome(trigger.Outcome{
		Source:     trigger.SourceRemote,
		Accepted:   true,
		Activation: &trigger.Activation{Timestamp: at, Source: trigger.SourceRemote},
	})
	tr.RecordOutcome(trigger.Outcome{Source: trigger.SourceRemote, Reason: trigger.ReasonAlreadyActive})
	tr.RecordOutcome(trigger.Outcome{Event: trigger.EventRearm, Released: true})

	c := tr.Snapshot().Counts
	if c.Timer != 1 || c.Button != 1 || c.Remote != 1 || c.Rejected != 1 {
		t.Errorf("Counts: got %+v", c)
	}
	last := tr.Snapshot().LastTrigger
	if last == nil || !last.Timestamp.Equal(at) {
		t.Errorf("LastTrigger: got %+v", last)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUsesClock(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.SetClock(func() time.Time { return start.Add(90 * time.Second) })

	snap := tr.Snapshot()
	if snap.Uptime() != 90*time.Second {
		t.Errorf("Uptime: got %v, want 90s", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(start, Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, Config{})
	history := []uint64{1, 2}
	tr.Update(true, schedule.Default(), history)

	snap1 := tr.Snapshot()
	history[0] = 99
	snap1.History[1] = 42
	tr.Update(false, schedule.Default(), []uint64{3})

	if !snap1.Active {
		t.Error("snapshot should be a copy; Active was modified")
	}
	if got := tr.Snapshot().History; len(got) != 1 || got[0] != 3 {
		t.Errorf("tracker history: got %v", got)
	}
	if snap1.History[0] != 1 {
		t.Error("tracker shares the caller's history slice")
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Active:        true,
		Schedule:      schedule.Default(),
		History:       []uint64{1772532010},
		Counts:        Counts{Timer: 5, Button: 2, Remote: 1, Rejected: 3},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Hostname: "glade", Version: "1.2.0", Broker: "tcp://localhost:1883", HeartbeatMs: 900000},
	}

	data, err := FormatJSON(snap)
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.State != "ACTIVE" {
		t.Errorf("State: got %q, want ACTIVE", parsed.Status.State)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Timer != 5 || parsed.Status.Counts.Rejected != 3 {
		t.Errorf("Counts: got %+v", parsed.Status.Counts)
	}
	if parsed.Status.Settings.Interval != 60 || !parsed.Status.Settings.Hours[8] {
		t.Errorf("Settings: got %+v", parsed.Status.Settings)
	}
	if len(parsed.Status.History) != 1 {
		t.Errorf("History: got %v", parsed.Status.History)
	}
	if parsed.Status.Event != "" || parsed.Status.Reason != "" {
		t.Error("expected empty Event and Reason for web format")
	}
	if parsed.Status.LastTrigger != nil {
		t.Error("expected no last_trigger")
	}
}

func TestFormatJSONEmptyHistoryIsArray(t *testing.T) {
	data, err := FormatJSON(Snapshot{StartTime: start, Now: start})
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}

	if !strings.Contains(string(data), `"history": []`) {
		t.Errorf("expected empty history array, got:\n%s", data)
	}
	if !strings.Contains(string(data), `"state": "IDLE"`) {
		t.Errorf("expected IDLE state, got:\n%s", data)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		StartTime:   start,
		Now:         start.Add(time.Minute),
		LastTrigger: &trigger.Activation{Timestamp: start.Add(30 * time.Second), Source: trigger.SourceButton},
	}

	data, err := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")
	if err != nil {
		t.Fatalf("FormatStatusEvent: %v", err)
	}

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", parsed.Status.Event, parsed.Status.Reason)
	}
	if parsed.Status.LastTrigger == nil || parsed.Status.LastTrigger.Source != "button" {
		t.Errorf("LastTrigger: got %+v", parsed.Status.LastTrigger)
	}
	if strings.Contains(string(data), "\n") {
		t.Error("MQTT payload should be compact")
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	data, err := FormatStatusEvent(Snapshot{StartTime: start, Now: start}, "STARTUP", "")
	if err != nil {
		t.Fatalf("FormatStatusEvent: %v", err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["status"]["reason"]; ok {
		t.Error("reason should be omitted")
	}
	if _, ok := raw["status"]["network"]; ok {
		t.Error("network should be omitted when nil")
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start,
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.50", SSID: "MyNet"},
	}

	data, err := FormatJSON(snap)
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected network")
	}
	if parsed.Status.Network.IP != "192.168.1.50" || parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network: got %+v", parsed.Status.Network)
	}
}

func TestSettingsJSONWireFormat(t *testing.T) {
	s := schedule.Schedule{Active: true, Interval: 60}
	s.Days[0] = true
	s.Hours[23] = true

	data, err := json.Marshal(NewSettingsJSON(s))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"active":true,"days":[true,false,false,false,false,false,false],` +
		`"hours":[false,false,false,false,false,false,false,false,false,false,false,false,` +
		`false,false,false,false,false,false,false,false,false,false,false,true],"interval":60}`
	if string(data) != want {
		t.Errorf("got:\n%s\nwant:\n%s", data, want)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(i%2 == 0, schedule.Default(), []uint64{uint64(i)})
			tr.RecordOutcome(trigger.Outcome{Source: trigger.SourceTimer, Accepted: true})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			if _, err := FormatJSON(snap); err != nil {
				t.Errorf("FormatJSON: %v", err)
				return
			}
		}
	}()

	wg.Wait()
}
