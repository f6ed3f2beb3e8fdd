package heater

import (
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/air-sensor/internal/gas"
)

// Sampler takes one raw voltage sample from the CO channel.
type Sampler func() (float64, error)

// Convert maps a smoothed sense-phase voltage to a concentration.
// The engine supplies the full model/compensation/two-point chain.
type Convert func(voltage float64) float64

// Config tunes the duty cycle. Zero values fall back to defaults.
type Config struct {
	// HeatDuration is the full-duty clean phase length.
	HeatDuration time.Duration
	// SenseDuration is the reduced-duty measurement phase length.
	SenseDuration time.Duration
	// Stabilization is how long after entering SENSING the signal
	// stays meaningless.
	Stabilization time.Duration
	// HeatDuty and SenseDuty are the drive ratios for each phase.
	// SenseDuty ~0.3 approximates the 1.5 V sense voltage.
	HeatDuty  float64
	SenseDuty float64
	// Samples is the burst size for one read. Samples are spread
	// across the PWM cycle with SampleGap delays.
	Samples   int
	SampleGap time.Duration
	// ArtifactVoltage rejects samples at or above this level; they
	// are floating-ground artifacts from the MOSFET's OFF phase.
	ArtifactVoltage float64
}

func (c Config) withDefaults() Config {
	if c.HeatDuration <= 0 {
		c.HeatDuration = 60 * time.Second
	}
	if c.SenseDuration <= 0 {
		c.SenseDuration = 90 * time.Second
	}
	if c.Stabilization <= 0 {
		c.Stabilization = 30 * time.Second
	}
	if c.HeatDuty <= 0 {
		c.HeatDuty = 1.0
	}
	if c.SenseDuty <= 0 {
		c.SenseDuty = 0.3
	}
	if c.Samples <= 0 {
		c.Samples = 20
	}
	if c.SampleGap <= 0 {
		c.SampleGap = 500 * time.Microsecond
	}
	if c.ArtifactVoltage <= 0 {
		c.ArtifactVoltage = 3.0
	}
	return c
}

// Controller runs the non-blocking duty-cycle state machine. It is
// advanced by Tick on every poll and serves concentration reads,
// falling back to the cached last-valid value whenever the sensor
// signal is not physically meaningful.
type Controller struct {
	cfg    Config
	drive  Driver
	sample Sampler
	smooth *gas.Smoother
	delay  func(time.Duration)
	log    *zap.Logger

	phase      Phase
	cached     float64
	haveCached bool
}

// New creates a controller starting in the HEATING phase at start.
func New(cfg Config, drive Driver, sample Sampler, smooth *gas.Smoother, start time.Time, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		cfg:    cfg.withDefaults(),
		drive:  drive,
		sample: sample,
		smooth: smooth,
		delay:  time.Sleep,
		log:    log,
		phase:  Phase{Kind: PhaseHeating, Since: start},
	}
	if err := drive.SetDuty(c.cfg.HeatDuty); err != nil {
		log.Warn("heater drive failed", zap.Error(err))
	}
	return c
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Cached returns the last valid concentration and whether one has
// been computed since boot.
func (c *Controller) Cached() (float64, bool) {
	return c.cached, c.haveCached
}

// Stable reports whether the sense signal is physically meaningful
// at the given instant: in SENSING and past the stabilization window.
func (c *Controller) Stable(now time.Time) bool {
	return c.phase.Kind == PhaseSensing && now.Sub(c.phase.Since) >= c.cfg.Stabilization
}

// Tick advances the state machine. Outside the transition thresholds
// this is a cheap no-op; the poll loop calls it every cycle.
func (c *Controller) Tick(now time.Time, convert Convert) {
	next, due := c.phase.next(now, c.cfg.HeatDuration, c.cfg.SenseDuration)
	if !due {
		return
	}

	switch next.Kind {
	case PhaseSensing:
		if err := c.drive.SetDuty(c.cfg.SenseDuty); err != nil {
			c.log.Warn("heater drive failed", zap.Error(err))
		}
		// The heating-phase voltage is meaningless for sensing;
		// restart smoothing from a fresh raw sample.
		c.smooth.Reset(gas.CO)
		if raw, err := c.sample(); err == nil {
			c.smooth.Smooth(gas.CO, raw)
		}

	case PhaseHeating:
		// End of SENSING is the most stable point of the cycle:
		// take one last read before the burn-off starts.
		c.computeAndCache(convert)
		if err := c.drive.SetDuty(c.cfg.HeatDuty); err != nil {
			c.log.Warn("heater drive failed", zap.Error(err))
		}
	}
	c.phase = next
}

// Read returns the CO concentration. During HEATING, and during the
// stabilization window after entering SENSING, repeated calls return
// the identical cached value; only in the valid window is a fresh
// value computed and cached.
func (c *Controller) Read(now time.Time, convert Convert) float64 {
	if !c.Stable(now) {
		return c.cached
	}
	return c.computeAndCache(convert)
}

// computeAndCache runs one artifact-filtered sample burst through
// the conversion chain and refreshes the cache. If every sample was
// rejected, the cached value is served unchanged.
func (c *Controller) computeAndCache(convert Convert) float64 {
	avg, ok := c.sampleBurst()
	if !ok {
		c.log.Warn("all heater samples rejected, serving cached value",
			zap.Float64("cached", c.cached))
		return c.cached
	}
	smoothed := c.smooth.Smooth(gas.CO, avg)
	c.cached = convert(smoothed)
	c.haveCached = true
	return c.cached
}

// sampleBurst averages the accepted samples from one burst. Samples
// at or above the artifact threshold are discarded. Returns ok=false
// if nothing was accepted.
func (c *Controller) sampleBurst() (float64, bool) {
	var sum float64
	accepted := 0
	for i := 0; i < c.cfg.Samples; i++ {
		if i > 0 {
			c.delay(c.cfg.SampleGap)
		}
		v, err := c.sample()
		if err != nil {
			continue
		}
		if v >= c.cfg.ArtifactVoltage {
			continue
		}
		sum += v
		accepted++
	}
	if accepted == 0 {
		return 0, false
	}
	return sum / float64(accepted), true
}
