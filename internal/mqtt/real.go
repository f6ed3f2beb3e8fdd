package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/air-sensor/internal/engine"
)

// replayCapacity bounds the offline queue. At a 5 s poll interval this
// holds roughly 40 minutes of readings.
const replayCapacity = 500

// RealPublisher publishes to an actual MQTT broker. Messages produced
// while the connection is down are queued and replayed in order when
// the connection comes back.
type RealPublisher struct {
	client paho.Client
	log    *zap.Logger

	mu    sync.Mutex
	queue *replayQueue
}

// NewRealPublisher creates a publisher connected to the given broker.
// The broker's last-will is a retained OFFLINE event so consumers can
// tell an ungraceful disconnect from a quiet sensor.
func NewRealPublisher(broker, clientID string, log *zap.Logger) (*RealPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p := &RealPublisher{
		log:   log,
		queue: newReplayQueue(replayCapacity),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	p.client = client
	return p, nil
}

// Publish sends one reading to the broker, queuing it if disconnected.
func (p *RealPublisher) Publish(r engine.Reading) error {
	payload, err := FormatPayload(r)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(outboundMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) - lifecycle events should survive a flaky link
	return p.send(outboundMsg{
		topic:    TopicSystem,
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
}

func (p *RealPublisher) send(msg outboundMsg) error {
	if !p.client.IsConnected() {
		p.enqueue(msg)
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		p.enqueue(msg)
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.enqueue(msg)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *RealPublisher) enqueue(msg outboundMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue.push(msg) {
		p.log.Warn("replay queue full, dropped oldest message",
			zap.Int("capacity", replayCapacity))
	}
}

// onConnect replays everything queued during the outage. Runs on the
// paho callback goroutine.
func (p *RealPublisher) onConnect(client paho.Client) {
	p.mu.Lock()
	queued := p.queue.drain()
	p.mu.Unlock()

	if len(queued) == 0 {
		return
	}
	p.log.Info("connection restored, replaying queued messages",
		zap.Int("count", len(queued)))
	for _, msg := range queued {
		token := client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(5 * time.Second) || token.Error() != nil {
			// Connection dropped again mid-replay; requeue the rest.
			p.enqueue(msg)
		}
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
