package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string             `json:"event,omitempty"`
	Reason         string             `json:"reason,omitempty"`
	AQI            int                `json:"aqi"`
	Category       string             `json:"category"`
	Dominant       string             `json:"dominant"`
	Pollutants     map[string]float64 `json:"pollutants"`
	HeaterPhase    string             `json:"heater_phase"`
	ABCWindowStart string             `json:"abc_window_start,omitempty"`
	Ready          bool               `json:"ready"`
	Polls          int64              `json:"polls"`
	LastReading    string             `json:"last_reading,omitempty"`
	UptimeSeconds  int64              `json:"uptime_seconds"`
	StartTime      string             `json:"start_time"`
	Timestamp      string             `json:"timestamp"`
	MQTT           MQTTStatus         `json:"mqtt"`
	Config         ConfigJSON         `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	StorePath   string `json:"store_path,omitempty"`
	WSBroker    string `json:"ws_broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	category := string(snap.Category)
	if category == "" {
		category = "UNKNOWN"
	}

	pollutants := make(map[string]float64, len(snap.Concentrations))
	for p, c := range snap.Concentrations {
		pollutants[string(p)] = c
	}

	inner := StatusInner{
		AQI:           snap.AQI,
		Category:      category,
		Dominant:      string(snap.Dominant),
		Pollutants:    pollutants,
		HeaterPhase:   snap.HeaterPhase,
		Ready:         snap.Ready(),
		Polls:         snap.Polls,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			StorePath:   snap.Config.StorePath,
			WSBroker:    snap.Config.WSBroker,
		},
	}
	if !snap.LastReading.IsZero() {
		inner.LastReading = snap.LastReading.UTC().Format(time.RFC3339)
	}
	if !snap.ABCWindowStart.IsZero() {
		inner.ABCWindowStart = snap.ABCWindowStart.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
