// Package aqi converts pollutant concentrations into EPA sub-indices
// and aggregates them into an overall Air Quality Index. Pure logic,
// no I/O.
package aqi

import "math"

// Pollutant identifies one pollutant tracked by the aggregator.
type Pollutant string

const (
	PM25 Pollutant = "pm2_5"
	PM10 Pollutant = "pm10"
	PM1  Pollutant = "pm1_0" // reported but has no AQI table
	CO   Pollutant = "co"
	CO2  Pollutant = "co2"
	O3   Pollutant = "o3"
	NH3  Pollutant = "nh3"
	NO2  Pollutant = "no2"
	SO2  Pollutant = "so2"
	TVOC Pollutant = "tvoc"
)

// Category is one of the six AQI severity bands.
type Category string

const (
	CategoryGood          Category = "Good"
	CategoryModerate      Category = "Moderate"
	CategorySensitive     Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy     Category = "Unhealthy"
	CategoryVeryUnhealthy Category = "Very Unhealthy"
	CategoryHazardous     Category = "Hazardous"
)

// Result is the output of one aggregation pass. It has no persisted
// identity and is recomputed from scratch every poll cycle.
type Result struct {
	AQI      int
	Category Category
	Dominant Pollutant
}

// MaxIndex is the AQI ceiling. Concentrations beyond the last
// breakpoint saturate here rather than extrapolating.
const MaxIndex = 500

// breakpoint maps one concentration band to one index band.
type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh int
}

// Breakpoint tables, in each pollutant's native unit. CO in ppm; O3,
// NO2 and SO2 in ppb; particulates in µg/m³. CO2, NH3 and TVOC have no
// EPA tables, so they carry device-defined bands of the same shape
// (CO2 from indoor-air guidance, NH3 from the OSHA exposure limit,
// TVOC from the Mølhave IAQ bands).
var breakpoints = map[Pollutant][]breakpoint{
	PM25: {
		{0, 12.0, 0, 50},
		{12.1, 35.4, 51, 100},
		{35.5, 55.4, 101, 150},
		{55.5, 150.4, 151, 200},
		{150.5, 250.4, 201, 300},
		{250.5, 500.4, 301, 500},
	},
	PM10: {
		{0, 54, 0, 50},
		{55, 154, 51, 100},
		{155, 254, 101, 150},
		{255, 354, 151, 200},
		{355, 424, 201, 300},
		{425, 604, 301, 500},
	},
	CO: {
		{0, 4.4, 0, 50},
		{4.5, 9.4, 51, 100},
		{9.5, 12.4, 101, 150},
		{12.5, 15.4, 151, 200},
		{15.5, 30.4, 201, 300},
		{30.5, 50.4, 301, 500},
	},
	O3: {
		{0, 54, 0, 50},
		{55, 70, 51, 100},
		{71, 85, 101, 150},
		{86, 105, 151, 200},
		{106, 200, 201, 300},
		{201, 604, 301, 500},
	},
	NO2: {
		{0, 53, 0, 50},
		{54, 100, 51, 100},
		{101, 360, 101, 150},
		{361, 649, 151, 200},
		{650, 1249, 201, 300},
		{1250, 2049, 301, 500},
	},
	SO2: {
		{0, 35, 0, 50},
		{36, 75, 51, 100},
		{76, 185, 101, 150},
		{186, 304, 151, 200},
		{305, 604, 201, 300},
		{605, 1004, 301, 500},
	},
	CO2: {
		{0, 600, 0, 50},
		{601, 1000, 51, 100},
		{1001, 1500, 101, 150},
		{1501, 2000, 151, 200},
		{2001, 5000, 201, 300},
		{5001, 10000, 301, 500},
	},
	NH3: {
		{0, 25, 0, 50},
		{26, 50, 51, 100},
		{51, 150, 101, 150},
		{151, 300, 151, 200},
		{301, 500, 201, 300},
		{501, 1000, 301, 500},
	},
	TVOC: {
		{0, 220, 0, 50},
		{221, 660, 51, 100},
		{661, 1430, 101, 150},
		{1431, 2200, 151, 200},
		{2201, 3300, 201, 300},
		{3301, 5500, 301, 500},
	},
}

// aggregationOrder fixes the iteration order so ties are deterministic.
// PM2.5 comes first and is only displaced by a strictly greater
// sub-index, which makes it the tie-break default.
var aggregationOrder = []Pollutant{PM25, PM10, CO, CO2, O3, NH3, NO2, SO2, TVOC}

// SubIndex converts one pollutant concentration into its 0–500
// sub-index by linear interpolation within the matching breakpoint
// band. Concentrations at or below zero map to 0; concentrations
// beyond the last band saturate at MaxIndex. Pollutants without a
// table contribute 0.
func SubIndex(p Pollutant, c float64) int {
	table, ok := breakpoints[p]
	if !ok || c <= 0 {
		return 0
	}
	for _, bp := range table {
		if c > bp.cHigh {
			continue
		}
		if c < bp.cLow {
			// Concentration fell in the gap between bands;
			// snap to the lower edge of this band.
			c = bp.cLow
		}
		i := (float64(bp.iHigh-bp.iLow)/(bp.cHigh-bp.cLow))*(c-bp.cLow) + float64(bp.iLow)
		return int(math.Round(i))
	}
	return MaxIndex
}

// Aggregate computes the overall AQI from the enabled pollutant
// concentrations. Absent (disabled) pollutants contribute nothing
// and never appear as dominant.
func Aggregate(concentrations map[Pollutant]float64) Result {
	best := -1
	var dominant Pollutant
	for _, p := range aggregationOrder {
		c, ok := concentrations[p]
		if !ok {
			continue
		}
		if si := SubIndex(p, c); si > best {
			best = si
			dominant = p
		}
	}
	if best < 0 {
		best = 0
	}
	return Result{
		AQI:      best,
		Category: CategoryFor(best),
		Dominant: dominant,
	}
}

// CategoryFor classifies an AQI value into its severity band.
func CategoryFor(index int) Category {
	switch {
	case index <= 50:
		return CategoryGood
	case index <= 100:
		return CategoryModerate
	case index <= 150:
		return CategorySensitive
	case index <= 200:
		return CategoryUnhealthy
	case index <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}
