package gas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSensorResistance(t *testing.T) {
	// Vout at half supply minus the divider: (5*10k)/2.5 - 10k = 10k
	assert.InDelta(t, 10000.0, SensorResistance(2.5, 10000), 1e-6)
}

func TestSensorResistanceFloorsLowVoltage(t *testing.T) {
	floored := SensorResistance(MinVoltage, 10000)
	assert.Equal(t, floored, SensorResistance(0.0, 10000))
	assert.Equal(t, floored, SensorResistance(0.01, 10000))
	assert.Equal(t, floored, SensorResistance(-1.0, 10000))
}

func TestPowerLawCurve(t *testing.T) {
	curve := Curve{Form: CurvePowerLaw, A: 99.042, B: -1.518}
	assert.InDelta(t, 99.042, curve.Concentration(1.0), 1e-9, "ratio 1 returns A")

	// Lower ratio (more gas) yields a higher concentration with B < 0.
	assert.Greater(t, curve.Concentration(0.5), curve.Concentration(1.0))
}

func TestLogInverseCurve(t *testing.T) {
	curve := ParamsFor(CO2).Curve
	// Clean air ratio of 1 corresponds to the atmospheric floor.
	assert.InDelta(t, 400.0, curve.Concentration(1.0), 0.1)
	assert.Greater(t, curve.Concentration(0.8), curve.Concentration(1.0))
}

func TestCurveFloorsTinyRatio(t *testing.T) {
	curve := Curve{Form: CurvePowerLaw, A: 100, B: -2}
	assert.Equal(t, curve.Concentration(minRatio), curve.Concentration(0))
}

func TestConcentrationMOSRoundTrip(t *testing.T) {
	// With Rs == R0 and K == 1 the ratio is exactly 1, so the CO
	// curve returns its A constant.
	r0 := SensorResistance(2.5, ParamsFor(CO).LoadOhms)
	got := Concentration(CO, 2.5, r0, 1.0)
	assert.InDelta(t, 99.042, got, 1e-6)
}

func TestConcentrationMOSCompensation(t *testing.T) {
	p := ParamsFor(CO)
	r0 := SensorResistance(2.5, p.LoadOhms)
	// K > 1 lowers the compensated resistance, so the ratio drops
	// and the reported concentration rises (B < 0).
	hot := Concentration(CO, 2.5, r0, 1.2)
	ref := Concentration(CO, 2.5, r0, 1.0)
	assert.Greater(t, hot, ref)
}

func TestConcentrationMOSUncalibratedReference(t *testing.T) {
	assert.Equal(t, ParamsFor(CO).Min, Concentration(CO, 2.5, 0, 1.0))
	assert.Equal(t, ParamsFor(CO).Min, Concentration(CO, 2.5, -5, 1.0))
}

func TestConcentrationNO2Delta(t *testing.T) {
	// 0.2 V above baseline at 500 ppb/V
	got := Concentration(NO2, 1.0, 0.8, 1.0)
	assert.InDelta(t, 100.0, got, 1e-9)
}

func TestConcentrationMEMSNegativeDeltaClampsToZero(t *testing.T) {
	assert.Equal(t, 0.0, Concentration(NO2, 0.5, 0.8, 1.0))
	assert.Equal(t, 0.0, Concentration(TVOC, 0.3, 0.6, 1.0))
}

func TestConcentrationTVOCFullScale(t *testing.T) {
	// delta 0.27 over span (3.3 - 0.6) is 10% of full scale.
	got := Concentration(TVOC, 0.87, 0.6, 1.0)
	assert.InDelta(t, 550.0, got, 1e-6)
}

func TestConcentrationTVOCBaselineCappedBelowVMax(t *testing.T) {
	// A baseline at or above the ADC ceiling must not produce a
	// zero divisor. The capped baseline keeps the output finite.
	got := Concentration(TVOC, 3.3, 3.3, 1.0)
	assert.False(t, got != got, "result must not be NaN")
	assert.LessOrEqual(t, got, ParamsFor(TVOC).Max)
}

func TestClampBoundsToPlausibleRange(t *testing.T) {
	assert.Equal(t, 1000.0, Clamp(CO, 5000))
	assert.Equal(t, 0.0, Clamp(CO, -3))
	assert.Equal(t, 400.0, Clamp(CO2, 10))
	assert.Equal(t, 42.0, Clamp(CO, 42))
}

func TestStepLimiter(t *testing.T) {
	l := NewStepLimiter(50)

	assert.Equal(t, 300.0, l.Accept(300), "first value accepted outright")
	assert.Equal(t, 350.0, l.Accept(500), "spike clamps to last+step")
	assert.Equal(t, 300.0, l.Accept(100), "drop clamps to last-step")
	assert.Equal(t, 310.0, l.Accept(310), "small moves pass through")
}
