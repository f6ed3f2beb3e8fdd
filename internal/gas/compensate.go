package gas

import "math"

// Reference point for the compensation model. Sensor curves are
// characterized at 20°C / 65%RH.
const (
	RefTemperature = 20.0
	RefHumidity    = 65.0

	minFactor = 0.5
	maxFactor = 1.8
)

// Factor returns the environmental correction factor K for a channel.
// The measured sensor resistance is divided by K before the Rs/R0
// ratio is computed. If either input is NaN (upstream climate sensor
// failure), compensation degrades to the identity factor 1.0 rather
// than propagating invalid data.
func Factor(ch Channel, temperatureC, humidityPct float64) float64 {
	if math.IsNaN(temperatureC) || math.IsNaN(humidityPct) {
		return 1.0
	}
	p := ParamsFor(ch)
	k := 1 - p.CompTemp*(temperatureC-RefTemperature) - p.CompHumidity*(humidityPct-RefHumidity)
	if k < minFactor {
		return minFactor
	}
	if k > maxFactor {
		return maxFactor
	}
	return k
}
