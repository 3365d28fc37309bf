package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/glade/internal/trigger"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	TopicRoot  string
	OutboxSize int
	// RetryInterval is the wait after a failed send; zero means
	// DefaultRetryInterval.
	RetryInterval time.Duration
}

// RealPublisher publishes to an MQTT broker. Publish and PublishSystem only
// queue the message; a background pump sends the queue in order whenever
// the connection is up, so callers never wait on the broker.
type RealPublisher struct {
	client paho.Client
	events string
	system string
	pump   *pump

	mu     sync.Mutex
	everUp bool
}

// NewRealPublisher starts connecting to the broker. If the broker is not
// reachable within the connect timeout the publisher is still returned and
// keeps retrying in the background.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if opts.TopicRoot == "" {
		opts.TopicRoot = DefaultTopicRoot
	}
	if opts.OutboxSize == 0 {
		opts.OutboxSize = DefaultOutboxSize
	}

	p := &RealPublisher{
		events: EventsTopic(opts.TopicRoot),
		system: SystemTopic(opts.TopicRoot),
	}
	p.pump = newPump(opts.OutboxSize, opts.RetryInterval, p.send)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventShutdown,
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetBinaryWill(p.system, will, 1, false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(clientOpts)
	p.pump.start()

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warn().Str("broker", opts.Broker).Msg("mqtt: broker not reachable yet, buffering")
		return p, nil
	}
	if err := token.Error(); err != nil {
		p.pump.stop()
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	reconnect := p.everUp
	p.everUp = true
	p.mu.Unlock()

	log.Info().Int("queued", p.pump.queued()).Bool("reconnect", reconnect).Msg("mqtt: connected")

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: EventReconnected}); err != nil {
			log.Warn().Err(err).Msg("mqtt: queue reconnect event")
		}
	}
	p.pump.setOnline(true)
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.pump.setOnline(false)
	log.Warn().Err(err).Msg("mqtt: connection lost")
}

func (p *RealPublisher) send(m message) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	return token.Error()
}

// Publish queues an activation (QoS 0, not retained).
func (p *RealPublisher) Publish(a trigger.Activation) error {
	payload, err := FormatPayload(a)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	p.pump.enqueue(message{topic: p.events, payload: payload})
	return nil
}

// PublishSystem queues a system event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	p.pump.enqueue(message{topic: p.system, payload: payload, qos: 1, retained: event.Retained})
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.pump.isOnline()
}

// Queued returns the number of messages not yet sent.
func (p *RealPublisher) Queued() int {
	return p.pump.queued()
}

// Close sends what it can of the queue, then disconnects.
func (p *RealPublisher) Close() error {
	if lost := p.pump.stop(); len(lost) > 0 {
		log.Warn().Int("dropped", len(lost)).Msg("mqtt: unsent messages discarded on close")
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
