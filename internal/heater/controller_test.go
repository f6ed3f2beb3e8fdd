package heater

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/air-sensor/internal/gas"
)

// scriptedSampler returns the given voltages in order, repeating the
// last one once exhausted.
func scriptedSampler(voltages ...float64) Sampler {
	i := 0
	return func() (float64, error) {
		v := voltages[i]
		if i < len(voltages)-1 {
			i++
		}
		return v, nil
	}
}

// times100 stands in for the model/compensation/two-point chain.
func times100(v float64) float64 { return v * 100 }

func newTestController(t *testing.T, sample Sampler, start time.Time) (*Controller, *FakeDriver) {
	t.Helper()
	drive := NewFakeDriver()
	c := New(Config{}, drive, sample, gas.NewSmoother(), start, nil)
	c.delay = func(time.Duration) {} // no wall-clock waits in tests
	return c, drive
}

func TestControllerBootsHeatingAtFullDuty(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	c, drive := newTestController(t, scriptedSampler(0.5), t0)

	assert.Equal(t, PhaseHeating, c.Phase().Kind)
	assert.Equal(t, 1.0, drive.LastDuty())
}

func TestControllerPhaseCycle(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	c, drive := newTestController(t, scriptedSampler(0.5), t0)

	c.Tick(t0.Add(30*time.Second), times100)
	assert.Equal(t, PhaseHeating, c.Phase().Kind, "no transition before 60s")

	c.Tick(t0.Add(60*time.Second), times100)
	assert.Equal(t, PhaseSensing, c.Phase().Kind)
	assert.Equal(t, 0.3, drive.LastDuty(), "sense phase drives reduced duty")

	c.Tick(t0.Add(150*time.Second), times100)
	assert.Equal(t, PhaseHeating, c.Phase().Kind)
	assert.Equal(t, 1.0, drive.LastDuty(), "heat phase drives full duty")
}

func TestStableOnlyInSenseWindowPastStabilization(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	c, _ := newTestController(t, scriptedSampler(0.5), t0)

	assert.False(t, c.Stable(t0.Add(30*time.Second)), "HEATING is never stable")

	enterSensing := t0.Add(60 * time.Second)
	c.Tick(enterSensing, times100)
	assert.False(t, c.Stable(enterSensing.Add(29*time.Second)), "stabilization window is not stable")
	assert.True(t, c.Stable(enterSensing.Add(30*time.Second)))
	assert.True(t, c.Stable(enterSensing.Add(89*time.Second)))
}

func TestReadDuringHeatingReturnsCachedValue(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	c, _ := newTestController(t, scriptedSampler(0.5), t0)

	first := c.Read(t0.Add(time.Second), times100)
	for i := 2; i < 10; i++ {
		got := c.Read(t0.Add(time.Duration(i)*time.Second), times100)
		assert.Equal(t, first, got, "repeated reads during HEATING must be identical")
	}
	_, have := c.Cached()
	assert.False(t, have, "no valid value has been computed yet")
}

func TestReadDuringStabilizationReturnsCachedValue(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	c, _ := newTestController(t, scriptedSampler(0.5), t0)

	enterSensing := t0.Add(60 * time.Second)
	c.Tick(enterSensing, times100)
	require.Equal(t, PhaseSensing, c.Phase().Kind)

	cached, _ := c.Cached()
	for _, offset := range []time.Duration{0, 10 * time.Second, 29 * time.Second} {
		got := c.Read(enterSensing.Add(offset), times100)
		assert.Equal(t, cached, got, "stabilization window must serve the cache")
	}
}

func TestReadInValidWindowComputesAndCaches(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	c, _ := newTestController(t, scriptedSampler(0.5), t0)

	enterSensing := t0.Add(60 * time.Second)
	c.Tick(enterSensing, times100)

	got := c.Read(enterSensing.Add(31*time.Second), times100)
	// Seed sample and burst all read 0.5 V, so the smoothed value
	// stays 0.5 and the conversion chain sees exactly that.
	assert.InDelta(t, 50.0, got, 1e-9)

	cached, have := c.Cached()
	assert.True(t, have)
	assert.Equal(t, got, cached)
}

func TestReadRejectsPWMArtifacts(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	// Seed sample 0.5, then a burst alternating real samples with
	// floating-ground artifacts at and above the 3.0 V threshold.
	var burst []float64
	burst = append(burst, 0.5) // sensing-entry seed
	for i := 0; i < 10; i++ {
		burst = append(burst, 0.5, 3.0, 4.9)
	}
	c, _ := newTestController(t, scriptedSampler(burst...), t0)

	enterSensing := t0.Add(60 * time.Second)
	c.Tick(enterSensing, times100)

	got := c.Read(enterSensing.Add(40*time.Second), times100)
	// Artifacts never enter the average: the result reflects only
	// the 0.5 V samples.
	assert.InDelta(t, 50.0, got, 1e-9)
}

func TestReadAllSamplesRejectedServesCache(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	// Good seed and first valid read, then nothing but artifacts.
	var script []float64
	script = append(script, 0.5)
	for i := 0; i < 21; i++ {
		script = append(script, 0.5)
	}
	for i := 0; i < 40; i++ {
		script = append(script, 3.3)
	}
	c, _ := newTestController(t, scriptedSampler(script...), t0)

	enterSensing := t0.Add(60 * time.Second)
	c.Tick(enterSensing, times100)

	first := c.Read(enterSensing.Add(31*time.Second), times100)
	require.InDelta(t, 50.0, first, 1e-9)

	second := c.Read(enterSensing.Add(45*time.Second), times100)
	assert.Equal(t, first, second, "all-rejected burst must fall back to the cache")
}

func TestBoundaryReadBeforeLeavingSensing(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	c, _ := newTestController(t, scriptedSampler(0.5), t0)

	enterSensing := t0.Add(60 * time.Second)
	c.Tick(enterSensing, times100)

	_, have := c.Cached()
	require.False(t, have)

	// The SENSING→HEATING transition takes one opportunistic read
	// at the most stable point before switching.
	c.Tick(enterSensing.Add(90*time.Second), times100)
	assert.Equal(t, PhaseHeating, c.Phase().Kind)

	cached, have := c.Cached()
	assert.True(t, have)
	assert.InDelta(t, 50.0, cached, 1e-9)
}

func TestSmoothingResetOnEnteringSensing(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	smooth := gas.NewSmoother()
	// Heating-phase voltage is far from the sensing voltage; the
	// reset must discard it completely.
	smooth.Smooth(gas.CO, 4.0)

	drive := NewFakeDriver()
	c := New(Config{}, drive, scriptedSampler(0.5), smooth, t0, nil)
	c.delay = func(time.Duration) {}

	c.Tick(t0.Add(60*time.Second), times100)

	v, ok := smooth.Value(gas.CO)
	require.True(t, ok)
	assert.Equal(t, 0.5, v, "smoothing state must restart from the fresh raw sample")
}
