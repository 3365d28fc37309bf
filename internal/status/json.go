package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/glade/internal/schedule"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Hostname      string       `json:"hostname"`
	Version       string       `json:"version"`
	State         string       `json:"state"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"trigger_counts"`
	LastTrigger   *LastJSON    `json:"last_trigger,omitempty"`
	Settings      SettingsJSON `json:"settings"`
	History       []uint64     `json:"history"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of trigger counts.
type CountsJSON struct {
	Timer    int `json:"timer"`
	Button   int `json:"button"`
	Remote   int `json:"remote"`
	Rejected int `json:"rejected"`
}

// LastJSON describes the most recent activation.
type LastJSON struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// SettingsJSON is the wire form of a Schedule, as served by /getsettings.
type SettingsJSON struct {
	Active   bool     `json:"active"`
	Days     [7]bool  `json:"days"`
	Hours    [24]bool `json:"hours"`
	Interval uint16   `json:"interval"`
}

// NewSettingsJSON converts a Schedule to its wire form.
func NewSettingsJSON(s schedule.Schedule) SettingsJSON {
	return SettingsJSON{
		Active:   s.Active,
		Days:     s.Days,
		Hours:    s.Hours,
		Interval: s.Interval,
	}
}

// HistoryJSON is the body of /gettriggerlog.
type HistoryJSON struct {
	History []uint64 `json:"history"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker           string `json:"broker"`
	TopicRoot        string `json:"topic_root"`
	HTTPAddr         string `json:"http_addr"`
	Timezone         string `json:"timezone"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	ButtonPollMs     int64  `json:"button_poll_ms"`
	ButtonDebounceMs int64  `json:"button_debounce_ms"`
}

// StateName returns "ACTIVE" or "IDLE".
func StateName(active bool) string {
	if active {
		return "ACTIVE"
	}
	return "IDLE"
}

func buildInner(snap Snapshot) StatusInner {
	history := snap.History
	if history == nil {
		history = []uint64{}
	}

	inner := StatusInner{
		Hostname:      snap.Config.Hostname,
		Version:       snap.Config.Version,
		State:         StateName(snap.Active),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Timer:    snap.Counts.Timer,
			Button:   snap.Counts.Button,
			Remote:   snap.Counts.Remote,
			Rejected: snap.Counts.Rejected,
		},
		Settings: NewSettingsJSON(snap.Schedule),
		History:  history,
		Config: ConfigJSON{
			Broker:           snap.Config.Broker,
			TopicRoot:        snap.Config.TopicRoot,
			HTTPAddr:         snap.Config.HTTPAddr,
			Timezone:         snap.Config.Timezone,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			ButtonPollMs:     snap.Config.ButtonPollMs,
			ButtonDebounceMs: snap.Config.ButtonDebounceMs,
		},
	}

	if snap.LastTrigger != nil {
		inner.LastTrigger = &LastJSON{
			Timestamp: snap.LastTrigger.Timestamp.UTC().Format(time.RFC3339),
			Source:    string(snap.LastTrigger.Source),
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) ([]byte, error) {
	return json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) ([]byte, error) {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	return json.Marshal(StatusJSON{Status: inner})
}
