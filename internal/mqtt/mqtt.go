// Package mqtt publishes activations and system events to a broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/glade/internal/trigger"
)

// DefaultTopicRoot is the topic prefix used when none is configured.
const DefaultTopicRoot = "glade/trigger"

// EventsTopic returns the topic activations are published to.
func EventsTopic(root string) string {
	return root + "/events"
}

// SystemTopic returns the topic lifecycle events are published to.
func SystemTopic(root string) string {
	return root + "/system"
}

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventSettings    = "SETTINGS"
	EventReconnected = "RECONNECTED"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an activation to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(a trigger.Activation) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle event (startup, shutdown, heartbeat, settings).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // shutdown only, e.g. "SIGTERM"
	RawPayload []byte // pre-formatted JSON; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the activation message.
type Payload struct {
	Trigger TriggerPayload `json:"trigger"`
}

// TriggerPayload contains the activation details.
type TriggerPayload struct {
	Timestamp string `json:"timestamp"`
	Epoch     uint64 `json:"epoch"`
	Source    string `json:"source"`
}

// FormatPayload creates the JSON payload for an activation.
func FormatPayload(a trigger.Activation) ([]byte, error) {
	return json.Marshal(Payload{
		Trigger: TriggerPayload{
			Timestamp: a.Timestamp.UTC().Format(time.RFC3339),
			Epoch:     a.Epoch,
			Source:    string(a.Source),
		},
	})
}

// SystemPayload is the message for events without a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// Discard is a Publisher that drops everything. Used when no broker is configured.
type Discard struct{}

func (Discard) Publish(trigger.Activation) error { return nil }
func (Discard) PublishSystem(SystemEvent) error  { return nil }
func (Discard) Close() error                     { return nil }
func (Discard) IsConnected() bool                { return false }
