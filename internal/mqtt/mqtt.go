// Package mqtt publishes air-quality readings and system lifecycle
// events, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/air-sensor/internal/engine"
)

// Topic is the MQTT topic for periodic air-quality readings.
const Topic = "env/air-sensor/readings"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "env/air-sensor/system"

// Publisher publishes readings to MQTT.
type Publisher interface {
	// Publish sends one air-quality reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(r engine.Reading) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Config     *SystemConfig
	Heartbeat  *HeartbeatInfo
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemConfig is the configuration block attached to STARTUP events.
type SystemConfig struct {
	PollMs      int    `json:"poll_ms"`
	HeartbeatMs int    `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
}

// HeartbeatInfo is the periodic liveness block attached to HEARTBEAT events.
type HeartbeatInfo struct {
	UptimeSeconds int64 `json:"uptime_seconds"`
	Polls         int64 `json:"polls"`
	LastAQI       int   `json:"last_aqi"`
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Air AirPayload `json:"air"`
}

// AirPayload contains one reading's details.
type AirPayload struct {
	Timestamp  string             `json:"timestamp"`
	AQI        int                `json:"aqi"`
	Category   string             `json:"category"`
	Dominant   string             `json:"dominant"`
	Pollutants map[string]float64 `json:"pollutants"`
}

// FormatPayload creates the JSON payload for one reading.
func FormatPayload(r engine.Reading) ([]byte, error) {
	pollutants := make(map[string]float64, len(r.Concentrations))
	for p, c := range r.Concentrations {
		pollutants[string(p)] = c
	}
	payload := Payload{
		Air: AirPayload{
			Timestamp:  r.Time.UTC().Format(time.RFC3339),
			AQI:        r.AQI.AQI,
			Category:   string(r.AQI.Category),
			Dominant:   string(r.AQI.Dominant),
			Pollutants: pollutants,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Reason    string         `json:"reason,omitempty"`
	Config    *SystemConfig  `json:"config,omitempty"`
	Heartbeat *HeartbeatInfo `json:"heartbeat,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			Config:    event.Config,
			Heartbeat: event.Heartbeat,
		},
	}
	return json.Marshal(payload)
}
