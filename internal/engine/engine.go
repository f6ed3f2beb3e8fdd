// Package engine wires the sensor array into the calibration,
// compensation and AQI pipeline. The engine owns the calibration
// record for the process lifetime; everything runs on the single
// poll-loop goroutine, so no locking is needed — the only shared
// discipline is that manual calibration suspends auto-baseline
// correction while it holds the record.
package engine

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/air-sensor/internal/abc"
	"github.com/sweeney/air-sensor/internal/adc"
	"github.com/sweeney/air-sensor/internal/aqi"
	"github.com/sweeney/air-sensor/internal/calib"
	"github.com/sweeney/air-sensor/internal/climate"
	"github.com/sweeney/air-sensor/internal/gas"
	"github.com/sweeney/air-sensor/internal/heater"
	"github.com/sweeney/air-sensor/internal/pm"
)

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	// Enabled marks which gas channels are polled. A nil map
	// enables everything.
	Enabled map[gas.Channel]bool

	// ABC tunes auto-baseline correction.
	ABC abc.Config

	// Heater tunes the MQ-7 duty cycle.
	Heater heater.Config

	// CalibrationSamples and CalibrationGap shape the blocking
	// sample averaging used by the manual calibration routines.
	CalibrationSamples int
	CalibrationGap     time.Duration
}

func (c Config) withDefaults() Config {
	if c.CalibrationSamples <= 0 {
		c.CalibrationSamples = 100
	}
	if c.CalibrationGap <= 0 {
		c.CalibrationGap = 10 * time.Millisecond
	}
	return c
}

// Reading is the output of one poll cycle.
type Reading struct {
	Time time.Time

	// Concentrations holds each enabled pollutant in its native
	// unit. Read-only output; safe to hand to reporting consumers.
	Concentrations map[aqi.Pollutant]float64

	AQI aqi.Result
}

// Engine runs the calibration, compensation and AQI pipeline.
type Engine struct {
	cfg     Config
	adc     adc.Reader
	climate climate.Reader
	pm      pm.Reader
	store   calib.Store
	log     *zap.Logger

	rec    *calib.Record
	smooth *gas.Smoother
	abc    *abc.Corrector
	heater *heater.Controller
	tvoc   *gas.StepLimiter

	// delay is time.Sleep, injectable for tests. Used only by the
	// blocking calibration routines.
	delay func(time.Duration)
}

// New loads the calibration record and assembles the pipeline.
// start anchors the ABC window and the heater phase.
func New(cfg Config, adcR adc.Reader, climateR climate.Reader, pmR pm.Reader,
	drive heater.Driver, store calib.Store, start time.Time, log *zap.Logger) (*Engine, error) {

	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	rec, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load calibration: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		adc:     adcR,
		climate: climateR,
		pm:      pmR,
		store:   store,
		log:     log,
		rec:     rec,
		smooth:  gas.NewSmoother(),
		tvoc:    gas.NewStepLimiter(gas.TVOCStep),
		delay:   time.Sleep,
	}

	var mems []gas.Channel
	for _, ch := range gas.Channels() {
		if gas.IsMEMS(ch) && e.enabled(ch) {
			mems = append(mems, ch)
		}
	}
	e.abc = abc.New(mems, start, cfg.ABC)

	if e.enabled(gas.CO) {
		e.heater = heater.New(cfg.Heater, drive, func() (float64, error) {
			return e.adc.ReadVoltage(gas.CO)
		}, e.smooth, start, log.Named("heater"))
	} else if err := drive.SetDuty(0); err != nil {
		// No CO channel means no duty cycling; leave the coil cold.
		log.Warn("heater drive off failed", zap.Error(err))
	}

	return e, nil
}

// PollAndCompute advances the background controllers and computes a
// full reading: per-pollutant concentrations plus the aggregate AQI.
// Called once per reporting cycle from the poll loop.
func (e *Engine) PollAndCompute(now time.Time) Reading {
	tempC, humidity := e.readClimate()

	concs := make(map[aqi.Pollutant]float64)
	for _, ch := range gas.Channels() {
		if !e.enabled(ch) {
			continue
		}
		k := gas.Factor(ch, tempC, humidity)

		if ch == gas.CO {
			convert := e.coConvert(k)
			e.heater.Tick(now, convert)
			concs[aqi.CO] = e.heater.Read(now, convert)
			continue
		}

		voltage, err := e.adc.ReadVoltage(ch)
		if err != nil {
			e.log.Warn("channel read failed", zap.String("channel", string(ch)), zap.Error(err))
			continue
		}
		smoothed := e.smooth.Smooth(ch, voltage)
		if gas.IsMEMS(ch) {
			e.abc.Observe(ch, smoothed)
		}

		c := gas.Concentration(ch, smoothed, e.rec.Reference[ch], k)
		if ch == gas.TVOC {
			c = e.tvoc.Accept(c)
		}
		concs[pollutant(ch)] = gas.ApplyTwoPoint(c, e.rec.Zero[ch], e.rec.Span[ch])
	}

	if e.abc.Advance(now, e.rec) {
		if err := e.store.Save(e.rec); err != nil {
			e.log.Error("persist baseline correction failed", zap.Error(err))
		} else {
			e.log.Info("baselines corrected",
				zap.Float64("no2", e.rec.Reference[gas.NO2]),
				zap.Float64("tvoc", e.rec.Reference[gas.TVOC]))
		}
	}

	e.addParticulates(concs)

	return Reading{
		Time:           now,
		Concentrations: concs,
		AQI:            aqi.Aggregate(concs),
	}
}

func (e *Engine) addParticulates(concs map[aqi.Pollutant]float64) {
	p, err := e.pm.Read()
	if err != nil {
		e.log.Warn("pm read failed", zap.Error(err))
		return
	}
	concs[aqi.PM1] = floor0(p.PM1 + e.rec.PM.PM1)
	concs[aqi.PM25] = floor0(p.PM25 + e.rec.PM.PM25)
	concs[aqi.PM10] = floor0(p.PM10 + e.rec.PM.PM10)
}

// RunZeroCalibration samples the channel in clean air and moves the
// two-point zero to the current pre-correction reading, resetting
// span to 1. Blocks for the sampling window (the one allowed
// blocking operation, bounded by the fixed sample count and only
// reachable from an explicit user action). ABC is suspended for the
// duration and restarts with a fresh window.
//
// For the CO channel this must be run during the heater's sense
// window, when the raw signal is physically meaningful.
func (e *Engine) RunZeroCalibration(ch gas.Channel, now time.Time) error {
	if err := e.checkCalibratable(ch, now); err != nil {
		return err
	}

	e.abc.Suspend()
	defer e.abc.Resume(now)

	avg, err := e.averageVoltage(ch)
	if err != nil {
		return fmt.Errorf("zero calibration %s: %w", ch, err)
	}

	tempC, humidity := e.readClimate()
	raw := gas.Concentration(ch, avg, e.rec.Reference[ch], gas.Factor(ch, tempC, humidity))

	next := e.rec.Clone()
	next.Zero[ch] = raw
	next.Span[ch] = 1
	if err := e.store.Save(next); err != nil {
		return fmt.Errorf("persist zero calibration %s: %w", ch, err)
	}
	e.rec = next

	// Seed smoothing from the calibration average so the next poll
	// reflects the calibrated state immediately.
	e.smooth.Reset(ch)
	e.smooth.Smooth(ch, avg)

	e.log.Info("zero calibration applied",
		zap.String("channel", string(ch)), zap.Float64("zero", raw))
	return nil
}

// RunSpanCalibration samples the channel at a known reference
// concentration and rescales span so the corrected reading matches
// the target. Same blocking and ABC rules as RunZeroCalibration.
func (e *Engine) RunSpanCalibration(ch gas.Channel, target float64, now time.Time) error {
	if err := e.checkCalibratable(ch, now); err != nil {
		return err
	}
	if target <= 0 {
		return fmt.Errorf("span calibration %s: target must be positive, got %g", ch, target)
	}

	e.abc.Suspend()
	defer e.abc.Resume(now)

	avg, err := e.averageVoltage(ch)
	if err != nil {
		return fmt.Errorf("span calibration %s: %w", ch, err)
	}

	tempC, humidity := e.readClimate()
	raw := gas.Concentration(ch, avg, e.rec.Reference[ch], gas.Factor(ch, tempC, humidity))
	current := gas.ApplyTwoPoint(raw, e.rec.Zero[ch], e.rec.Span[ch])
	if current < 0.001 {
		current = 0.001
	}

	next := e.rec.Clone()
	next.Span[ch] = (target * e.rec.Span[ch]) / current
	if err := e.store.Save(next); err != nil {
		return fmt.Errorf("persist span calibration %s: %w", ch, err)
	}
	e.rec = next

	e.smooth.Reset(ch)
	e.smooth.Smooth(ch, avg)

	e.log.Info("span calibration applied",
		zap.String("channel", string(ch)),
		zap.Float64("target", target),
		zap.Float64("span", next.Span[ch]))
	return nil
}

// averageVoltage blocks for the configured sampling window and
// returns the mean raw voltage. Bounded by the fixed sample count;
// fails only if every sample errored.
func (e *Engine) averageVoltage(ch gas.Channel) (float64, error) {
	var sum float64
	accepted := 0
	for i := 0; i < e.cfg.CalibrationSamples; i++ {
		if i > 0 {
			e.delay(e.cfg.CalibrationGap)
		}
		v, err := e.adc.ReadVoltage(ch)
		if err != nil {
			continue
		}
		sum += v
		accepted++
	}
	if accepted == 0 {
		return 0, fmt.Errorf("no usable samples")
	}
	return sum / float64(accepted), nil
}

func (e *Engine) checkCalibratable(ch gas.Channel, now time.Time) error {
	if !gas.Valid(ch) {
		return fmt.Errorf("unknown channel %q", ch)
	}
	if !e.enabled(ch) {
		return fmt.Errorf("channel %s is disabled", ch)
	}
	// The MQ-7 raw feed is only meaningful in the stable part of the
	// sense window; a calibration sampled anywhere else would persist
	// a heating-phase artifact as the zero or span point.
	if ch == gas.CO && !e.heater.Stable(now) {
		return fmt.Errorf("co calibration requires the stable sense window (heater phase %s)",
			e.heater.Phase().Kind)
	}
	return nil
}

// readClimate returns the ambient conditions, or a NaN pair when the
// climate sensor fails. NaN degrades compensation to identity.
func (e *Engine) readClimate() (float64, float64) {
	t, h, err := e.climate.Read()
	if err != nil {
		e.log.Warn("climate read failed, compensation disabled for this cycle", zap.Error(err))
		return math.NaN(), math.NaN()
	}
	return t, h
}

// coConvert builds the full conversion chain for the CO channel at
// the current environmental factor.
func (e *Engine) coConvert(k float64) heater.Convert {
	return func(voltage float64) float64 {
		c := gas.Concentration(gas.CO, voltage, e.rec.Reference[gas.CO], k)
		return gas.ApplyTwoPoint(c, e.rec.Zero[gas.CO], e.rec.Span[gas.CO])
	}
}

func (e *Engine) enabled(ch gas.Channel) bool {
	if e.cfg.Enabled == nil {
		return true
	}
	return e.cfg.Enabled[ch]
}

// HeaterPhase returns the current MQ-7 heater phase for status
// consumers, or an OFF phase when the CO channel is disabled.
func (e *Engine) HeaterPhase() heater.Phase {
	if e.heater == nil {
		return heater.Phase{Kind: heater.PhaseOff}
	}
	return e.heater.Phase()
}

// ABCWindowStart returns the start of the current baseline window.
func (e *Engine) ABCWindowStart() time.Time {
	return e.abc.WindowStart()
}

// Calibration returns a copy of the current calibration record.
func (e *Engine) Calibration() calib.Record {
	return *e.rec.Clone()
}

func pollutant(ch gas.Channel) aqi.Pollutant {
	return aqi.Pollutant(string(ch))
}

func floor0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
