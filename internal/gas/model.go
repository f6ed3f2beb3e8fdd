package gas

import "math"

// minRatio floors the Rs/R0 ratio before the curve math. A ratio of
// zero with a negative exponent would blow up to +Inf.
const minRatio = 1e-3

// tvocBaselineMargin keeps the TVOC baseline strictly below the ADC
// ceiling so the full-scale divisor never reaches zero.
const tvocBaselineMargin = 0.05

// SensorResistance computes the MOS sensor resistance from the
// smoothed output voltage and the channel's load resistance.
// Voltages below MinVoltage are floored to avoid division blow-up.
func SensorResistance(voltage, loadOhms float64) float64 {
	if voltage < MinVoltage {
		voltage = MinVoltage
	}
	return (SupplyVoltage*loadOhms)/voltage - loadOhms
}

// Concentration applies a curve to an Rs/R0 ratio.
func (c Curve) Concentration(ratio float64) float64 {
	if ratio < minRatio {
		ratio = minRatio
	}
	switch c.Form {
	case CurveLogInverse:
		return math.Pow(10, (math.Log10(ratio)+c.A)/c.B)
	default:
		return c.A * math.Pow(ratio, c.B)
	}
}

// Concentration converts a smoothed voltage into the channel's native
// concentration unit.
//
// MOS channels: Rs is computed from the load resistor, divided by the
// environmental factor k, ratioed against the clean-air reference
// resistance, and run through the channel's empirical curve.
//
// MEMS channels: the voltage delta above the stored baseline is
// scaled linearly. Negative deltas clamp to zero.
//
// The result is clamped to the channel's plausible range: a value
// outside the physical sensor range is evidence of a fault, not a
// valid reading.
func Concentration(ch Channel, smoothedVoltage, reference, k float64) float64 {
	p := ParamsFor(ch)
	var c float64

	switch p.Kind {
	case KindMOS:
		if reference <= 0 {
			// Uncalibrated reference; nothing meaningful to report.
			return p.Min
		}
		if k <= 0 {
			k = 1.0
		}
		rs := SensorResistance(smoothedVoltage, p.LoadOhms)
		ratio := (rs / k) / reference
		c = p.Curve.Concentration(ratio)

	case KindMEMS:
		delta := smoothedVoltage - reference
		if delta < 0 {
			delta = 0
		}
		if ch == TVOC {
			baseline := reference
			if baseline > MEMSMaxVoltage-tvocBaselineMargin {
				baseline = MEMSMaxVoltage - tvocBaselineMargin
			}
			c = (delta / (MEMSMaxVoltage - baseline)) * p.FullScale
		} else {
			c = delta * p.Sensitivity
		}
	}

	return Clamp(ch, c)
}

// Clamp bounds a concentration to the channel's plausible range.
func Clamp(ch Channel, c float64) float64 {
	p := ParamsFor(ch)
	if c < p.Min {
		return p.Min
	}
	if c > p.Max {
		return p.Max
	}
	return c
}

// StepLimiter suppresses single-sample spikes by limiting the change
// between consecutive accepted values to a fixed step.
type StepLimiter struct {
	step   float64
	last   float64
	primed bool
}

// NewStepLimiter creates a limiter with the given maximum step.
func NewStepLimiter(step float64) *StepLimiter {
	return &StepLimiter{step: step}
}

// Accept returns v clamped to last±step, and records the result as
// the new last accepted value. The first value is accepted outright.
func (l *StepLimiter) Accept(v float64) float64 {
	if !l.primed {
		l.last = v
		l.primed = true
		return v
	}
	if v > l.last+l.step {
		v = l.last + l.step
	} else if v < l.last-l.step {
		v = l.last - l.step
	}
	l.last = v
	return v
}
