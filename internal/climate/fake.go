package climate

// FakeReader serves fixed climate values for tests.
type FakeReader struct {
	TemperatureC float64
	HumidityPct  float64

	// ReadError, if set, is returned by Read.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeReader creates a FakeReader at the given conditions.
func NewFakeReader(temperatureC, humidityPct float64) *FakeReader {
	return &FakeReader{TemperatureC: temperatureC, HumidityPct: humidityPct}
}

// Read returns the scripted conditions.
func (f *FakeReader) Read() (float64, float64, error) {
	if f.ReadError != nil {
		return 0, 0, f.ReadError
	}
	return f.TemperatureC, f.HumidityPct, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
