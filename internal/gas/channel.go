// Package gas contains pure conversion logic for the gas sensor array.
// This package has NO external dependencies (no ADC, MQTT, OS, or time.Sleep).
// All state is explicit and all functions are deterministic.
package gas

// Channel identifies one gas sensor channel.
type Channel string

const (
	CO   Channel = "co"
	CO2  Channel = "co2"
	O3   Channel = "o3"
	NH3  Channel = "nh3"
	NO2  Channel = "no2"
	SO2  Channel = "so2"
	TVOC Channel = "tvoc"
)

// Channels returns all channels in their fixed polling order.
func Channels() []Channel {
	return []Channel{CO, CO2, O3, NH3, NO2, SO2, TVOC}
}

// Kind distinguishes the two sensor families on the board.
type Kind int

const (
	// KindMOS is a metal-oxide sensor read through a load resistor.
	// Concentration comes from the Rs/R0 resistance ratio.
	KindMOS Kind = iota
	// KindMEMS is a MEMS sensor read as a delta voltage above a
	// stored clean-air baseline.
	KindMEMS
)

// CurveForm selects how MOS curve constants are interpreted.
type CurveForm int

const (
	// CurvePowerLaw computes ppm = A * ratio^B.
	CurvePowerLaw CurveForm = iota
	// CurveLogInverse computes ppm = 10^((log10(ratio) + A) / B).
	CurveLogInverse
)

// Curve holds the empirical datasheet constants for a MOS channel.
// The constants are fixed configuration, never derived at runtime.
type Curve struct {
	Form CurveForm
	A    float64
	B    float64
}

// Params describes the physical and model parameters of one channel.
type Params struct {
	Kind Kind
	// Unit is the native concentration unit ("ppm" or "ppb").
	Unit string
	// LoadOhms is the measured load resistance for MOS channels.
	LoadOhms float64
	// Alpha is the exponential smoothing factor.
	Alpha float64
	// Curve is the MOS concentration curve (MOS channels only).
	Curve Curve
	// Min and Max bound the plausible output range. Values outside
	// this range indicate a fault and are clamped, not rejected.
	Min, Max float64
	// CompTemp and CompHumidity are the environmental compensation
	// coefficients (MOS channels; MEMS channels are weakly affected).
	CompTemp, CompHumidity float64
	// Sensitivity converts delta volts to concentration (NO2 only).
	Sensitivity float64
	// FullScale is the concentration at full-scale delta (TVOC only).
	FullScale float64
}

const (
	// SupplyVoltage is the MOS sensor circuit supply.
	SupplyVoltage = 5.0
	// MEMSMaxVoltage is the ADC reference on the MEMS channels.
	MEMSMaxVoltage = 3.3
	// MinVoltage floors voltage inputs before resistance math to
	// avoid division blow-up on a shorted or floating input.
	MinVoltage = 0.1

	defaultAlpha = 0.2
	// The raw TVOC signal is noisier than the rest, so it gets a
	// much stronger smoothing factor.
	tvocAlpha = 0.05

	// TVOCStep is the maximum accepted change between consecutive
	// TVOC readings (ppb). Larger jumps are single-sample spikes.
	TVOCStep = 50.0
)

var params = map[Channel]Params{
	CO: {
		Kind: KindMOS, Unit: "ppm", LoadOhms: 10000, Alpha: defaultAlpha,
		Curve: Curve{Form: CurvePowerLaw, A: 99.042, B: -1.518},
		Min:   0, Max: 1000,
		CompTemp: 0.015, CompHumidity: 0.0025,
	},
	CO2: {
		Kind: KindMOS, Unit: "ppm", LoadOhms: 22000, Alpha: defaultAlpha,
		Curve: Curve{Form: CurveLogInverse, A: -1.30103, B: -0.5},
		Min:   400, Max: 10000,
		CompTemp: 0.012, CompHumidity: 0.002,
	},
	O3: {
		Kind: KindMOS, Unit: "ppb", LoadOhms: 47000, Alpha: defaultAlpha,
		Curve: Curve{Form: CurvePowerLaw, A: 8.1399, B: 2.1769},
		Min:   0, Max: 1000,
		CompTemp: 0.02, CompHumidity: 0.003,
	},
	NH3: {
		Kind: KindMOS, Unit: "ppm", LoadOhms: 20000, Alpha: defaultAlpha,
		Curve: Curve{Form: CurvePowerLaw, A: 102.2, B: -2.473},
		Min:   0, Max: 300,
		CompTemp: 0.017, CompHumidity: 0.0028,
	},
	SO2: {
		Kind: KindMOS, Unit: "ppb", LoadOhms: 15000, Alpha: defaultAlpha,
		Curve: Curve{Form: CurvePowerLaw, A: 40.44, B: -1.085},
		Min:   0, Max: 1004,
		CompTemp: 0.015, CompHumidity: 0.0025,
	},
	NO2: {
		Kind: KindMEMS, Unit: "ppb", Alpha: defaultAlpha,
		Min: 0, Max: 2000,
		CompTemp: 0.01, CompHumidity: 0.0015,
		Sensitivity: 500, // ppb per volt above baseline
	},
	TVOC: {
		Kind: KindMEMS, Unit: "ppb", Alpha: tvocAlpha,
		Min: 0, Max: 5500,
		CompTemp: 0.008, CompHumidity: 0.001,
		FullScale: 5500,
	},
}

// ParamsFor returns the parameter set for a channel. Unknown channels
// return the zero Params; callers validate channels at config load.
func ParamsFor(ch Channel) Params {
	return params[ch]
}

// IsMEMS reports whether a channel uses the delta-voltage MEMS model.
func IsMEMS(ch Channel) bool {
	return params[ch].Kind == KindMEMS
}

// Valid reports whether ch names a known channel.
func Valid(ch Channel) bool {
	_, ok := params[ch]
	return ok
}
