package main

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/air-sensor/internal/adc"
	"github.com/sweeney/air-sensor/internal/calib"
	"github.com/sweeney/air-sensor/internal/climate"
	"github.com/sweeney/air-sensor/internal/engine"
	"github.com/sweeney/air-sensor/internal/gas"
	"github.com/sweeney/air-sensor/internal/heater"
	"github.com/sweeney/air-sensor/internal/mqtt"
	"github.com/sweeney/air-sensor/internal/pm"
	"github.com/sweeney/air-sensor/internal/status"
)

// fakeClock provides a controllable time source for runLoop tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testVoltages() map[gas.Channel]float64 {
	return map[gas.Channel]float64{
		gas.CO:   0.5,
		gas.CO2:  2.5,
		gas.O3:   2.5,
		gas.NH3:  1.0,
		gas.SO2:  2.5,
		gas.NO2:  1.0,
		gas.TVOC: 0.87,
	}
}

func newTestEngine(t *testing.T, start time.Time) (*engine.Engine, *calib.MemStore) {
	t.Helper()
	store := calib.NewMemStore()
	eng, err := engine.New(engine.Config{
		CalibrationSamples: 3,
		CalibrationGap:     time.Millisecond,
	}, adc.NewFakeReader(testVoltages()), climate.NewFakeReader(20, 65),
		pm.NewFakeReader(pm.Concentrations{PM1: 5, PM25: 10, PM10: 20}),
		heater.NewFakeDriver(), store, start, zap.NewNop())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng, store
}

func newTestTracker(start time.Time) *status.Tracker {
	return status.NewTracker(start, status.Config{
		PollMs:      5000,
		HeartbeatMs: 900000,
		Broker:      "tcp://localhost:1883",
		HTTPPort:    ":8080",
	})
}

// loopHarness drives runLoop in a goroutine with scripted ticks and signals.
type loopHarness struct {
	clock   *fakeClock
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	store   *calib.MemStore
	calReqs chan calibrationRequest
	tick    chan time.Time
	sig     chan os.Signal
	done    chan error
}

func startLoop(t *testing.T, heartbeat time.Duration) *loopHarness {
	t.Helper()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	eng, store := newTestEngine(t, start)
	pub := mqtt.NewFakePublisher()
	pub.Connected = true

	h := &loopHarness{
		clock:   clock,
		pub:     pub,
		tracker: newTestTracker(start),
		store:   store,
		calReqs: make(chan calibrationRequest),
		tick:    make(chan time.Time),
		sig:     make(chan os.Signal, 1),
		done:    make(chan error, 1),
	}

	go func() {
		h.done <- runLoop(eng, pub, pub, h.tracker, h.calReqs,
			heartbeat, clock.Now, h.tick, h.sig, zap.NewNop())
	}()
	return h
}

// poll advances the clock and delivers one tick.
func (h *loopHarness) poll(step time.Duration) {
	h.clock.Advance(step)
	h.tick <- h.clock.Now()
}

// stop shuts the loop down and waits for it to return.
func (h *loopHarness) stop(t *testing.T, s os.Signal) {
	t.Helper()
	h.sig <- s
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("runLoop returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not exit after signal")
	}
}

func TestRunLoopPublishesReadingPerTick(t *testing.T) {
	h := startLoop(t, 0)

	h.poll(5 * time.Second)
	h.poll(5 * time.Second)
	h.stop(t, syscall.SIGTERM)

	if len(h.pub.Readings) != 2 {
		t.Fatalf("readings published: got %d, want 2", len(h.pub.Readings))
	}
	r := h.pub.Readings[0]
	if r.AQI.AQI == 0 {
		t.Error("expected a nonzero AQI in the published reading")
	}

	snap := h.tracker.Snapshot()
	if snap.Polls != 2 {
		t.Errorf("tracker polls: got %d, want 2", snap.Polls)
	}
	if !snap.MQTTConnected {
		t.Error("tracker should report MQTT connected")
	}
	if snap.HeaterPhase != "HEATING" {
		t.Errorf("heater phase: got %q, want HEATING at startup", snap.HeaterPhase)
	}
}

func TestRunLoopShutdownEvent(t *testing.T) {
	for _, tc := range []struct {
		sig    os.Signal
		reason string
	}{
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGINT, "SIGINT"},
	} {
		h := startLoop(t, 0)
		h.poll(5 * time.Second)
		h.stop(t, tc.sig)

		if len(h.pub.SystemEvents) != 1 {
			t.Fatalf("%s: system events: got %d, want 1", tc.reason, len(h.pub.SystemEvents))
		}
		ev := h.pub.SystemEvents[0]
		if ev.Event != "SHUTDOWN" {
			t.Errorf("%s: event: got %q, want SHUTDOWN", tc.reason, ev.Event)
		}
		if ev.Reason != tc.reason {
			t.Errorf("reason: got %q, want %s", ev.Reason, tc.reason)
		}
		if !ev.Retained {
			t.Errorf("%s: shutdown event should be retained", tc.reason)
		}
		if len(ev.RawPayload) == 0 {
			t.Errorf("%s: shutdown event should carry the status snapshot", tc.reason)
		}
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	h := startLoop(t, 15*time.Minute)

	h.poll(5 * time.Minute)
	h.poll(5 * time.Minute)
	if len(h.pub.SystemEvents) != 0 {
		t.Fatalf("heartbeat fired early after 10m: %v", h.pub.SystemEvents)
	}
	h.poll(5 * time.Minute)
	h.stop(t, syscall.SIGTERM)

	var heartbeats int
	for _, ev := range h.pub.SystemEvents {
		if ev.Event == "HEARTBEAT" {
			heartbeats++
			if len(ev.RawPayload) == 0 {
				t.Error("heartbeat should carry the status snapshot")
			}
		}
	}
	if heartbeats != 1 {
		t.Errorf("heartbeats: got %d, want 1", heartbeats)
	}
}

func TestRunLoopCalibrationRequest(t *testing.T) {
	h := startLoop(t, 0)

	h.poll(5 * time.Second)

	req := calibrationRequest{channel: gas.NO2, result: make(chan error, 1)}
	h.calReqs <- req
	select {
	case err := <-req.result:
		if err != nil {
			t.Fatalf("zero calibration: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("calibration result never arrived")
	}

	spanReq := calibrationRequest{channel: gas.NO2, target: 50, span: true, result: make(chan error, 1)}
	h.calReqs <- spanReq
	if err := <-spanReq.result; err != nil {
		t.Fatalf("span calibration: %v", err)
	}

	h.stop(t, syscall.SIGTERM)

	if h.store.Saves != 2 {
		t.Errorf("calibration saves: got %d, want 2", h.store.Saves)
	}
}

func TestRunLoopCalibrationErrorReported(t *testing.T) {
	h := startLoop(t, 0)

	req := calibrationRequest{channel: gas.Channel("radon"), result: make(chan error, 1)}
	h.calReqs <- req
	if err := <-req.result; err == nil {
		t.Error("expected error for unknown channel")
	}

	h.stop(t, syscall.SIGTERM)

	if h.store.Saves != 0 {
		t.Errorf("failed calibration should not save, got %d saves", h.store.Saves)
	}
}

func TestRunLoopSurvivesPublishError(t *testing.T) {
	h := startLoop(t, 0)
	h.pub.PublishError = errors.New("broker unreachable")

	h.poll(5 * time.Second)
	h.poll(5 * time.Second)
	h.stop(t, syscall.SIGTERM)

	// Loop kept running despite publish failures; tracker still advanced.
	if snap := h.tracker.Snapshot(); snap.Polls != 2 {
		t.Errorf("tracker polls: got %d, want 2", snap.Polls)
	}
}

func TestResolveWSBroker(t *testing.T) {
	log := zap.NewNop()
	tests := []struct {
		name   string
		ws     string
		broker string
		want   string
	}{
		{"off", "off", "tcp://192.168.1.5:1883", ""},
		{"empty", "", "tcp://192.168.1.5:1883", ""},
		{"explicit URL passes through", "ws://other-host:9001", "tcp://192.168.1.5:1883", "ws://other-host:9001"},
		{"derived from broker", "=broker", "tcp://192.168.1.5:1883", "ws://192.168.1.5:9001"},
		{"derived strips existing port", "=broker", "tcp://broker.local:1884", "ws://broker.local:9001"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := resolveWSBroker(tc.ws, tc.broker, log); got != tc.want {
				t.Errorf("resolveWSBroker(%q, %q) = %q, want %q", tc.ws, tc.broker, got, tc.want)
			}
		})
	}
}
