// Package abc implements auto-baseline correction for the MEMS
// channels. The sensors drift upward over months; assuming clean air
// is observed at least once per rolling window, the stored baseline
// is nudged toward the cleanest voltage seen. Baselines only ever
// move down — a pollution spike can never raise the zero point.
package abc

import (
	"time"

	"github.com/sweeney/air-sensor/internal/calib"
	"github.com/sweeney/air-sensor/internal/gas"
)

const (
	// DefaultWindow is the rolling observation window.
	DefaultWindow = 24 * time.Hour
	// DefaultBlend is the weight of the window minimum when the
	// baseline is corrected.
	DefaultBlend = 0.3
	// DefaultNoiseFloor rejects near-ground samples that are ADC
	// noise rather than real sensor output.
	DefaultNoiseFloor = 0.05
)

// Config tunes the corrector. Zero values fall back to the defaults.
type Config struct {
	Window     time.Duration
	Blend      float64
	NoiseFloor float64
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Blend <= 0 {
		c.Blend = DefaultBlend
	}
	if c.NoiseFloor <= 0 {
		c.NoiseFloor = DefaultNoiseFloor
	}
	return c
}

// Corrector tracks the per-channel minimum smoothed voltage over the
// rolling window. Not safe for concurrent use; the poll loop is the
// only caller.
type Corrector struct {
	cfg      Config
	channels []gas.Channel
	start    time.Time
	// min holds the running minimum per channel. A missing key is
	// the "unset" sentinel; it only resets at window rollover.
	min       map[gas.Channel]float64
	suspended bool
}

// New creates a corrector for the given MEMS channels with its
// window starting at start.
func New(channels []gas.Channel, start time.Time, cfg Config) *Corrector {
	return &Corrector{
		cfg:      cfg.withDefaults(),
		channels: channels,
		start:    start,
		min:      make(map[gas.Channel]float64),
	}
}

// Observe folds one smoothed voltage into the window minimum. Samples
// at or below the noise floor are ignored. No-op while suspended.
func (c *Corrector) Observe(ch gas.Channel, voltage float64) {
	if c.suspended {
		return
	}
	if voltage <= c.cfg.NoiseFloor {
		return
	}
	cur, ok := c.min[ch]
	if !ok || voltage < cur {
		c.min[ch] = voltage
	}
}

// Advance checks for window rollover and applies any due baseline
// corrections to the record. It reports whether the record changed
// (the caller persists it). Minima and the window start reset on
// every rollover whether or not a correction was applied.
func (c *Corrector) Advance(now time.Time, rec *calib.Record) bool {
	if c.suspended {
		return false
	}
	if now.Sub(c.start) < c.cfg.Window {
		return false
	}

	changed := false
	for _, ch := range c.channels {
		minimum, ok := c.min[ch]
		if !ok {
			continue
		}
		baseline := rec.Reference[ch]
		if minimum >= baseline {
			// Baseline only ever moves down.
			continue
		}
		rec.Reference[ch] = baseline*(1-c.cfg.Blend) + minimum*c.cfg.Blend
		changed = true
	}

	c.reset(now)
	return changed
}

// Suspend pauses observation and rollover. Manual calibration owns
// the baseline field for its duration; this is the mutual-exclusion
// discipline between the two mechanisms.
func (c *Corrector) Suspend() {
	c.suspended = true
}

// Resume restarts observation with a fresh window.
func (c *Corrector) Resume(now time.Time) {
	c.suspended = false
	c.reset(now)
}

// Suspended reports whether the corrector is paused.
func (c *Corrector) Suspended() bool {
	return c.suspended
}

// WindowStart returns the start of the current window.
func (c *Corrector) WindowStart() time.Time {
	return c.start
}

func (c *Corrector) reset(now time.Time) {
	c.start = now
	c.min = make(map[gas.Channel]float64)
}
