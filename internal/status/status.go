// Package status provides a thread-safe status tracker for the
// air-sensor daemon. It is read by HTTP handlers and by the MQTT
// heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/air-sensor/internal/aqi"
	"github.com/sweeney/air-sensor/internal/engine"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	StorePath   string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	AQI            int
	Category       aqi.Category
	Dominant       aqi.Pollutant
	Concentrations map[aqi.Pollutant]float64
	LastReading    time.Time
	Polls          int64
	HeaterPhase    string
	ABCWindowStart time.Time
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Config         Config
}

// Ready reports whether at least one reading has been computed.
func (s Snapshot) Ready() bool {
	return !s.LastReading.IsZero()
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the latest reading. Called from runLoop on every poll.
func (t *Tracker) Update(r engine.Reading, heaterPhase string, abcWindowStart time.Time) {
	concs := make(map[aqi.Pollutant]float64, len(r.Concentrations))
	for p, c := range r.Concentrations {
		concs[p] = c
	}

	t.mu.Lock()
	t.snap.AQI = r.AQI.AQI
	t.snap.Category = r.AQI.Category
	t.snap.Dominant = r.AQI.Dominant
	t.snap.Concentrations = concs
	t.snap.LastReading = r.Time
	t.snap.Polls++
	t.snap.HeaterPhase = heaterPhase
	t.snap.ABCWindowStart = abcWindowStart
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
