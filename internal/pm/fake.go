package pm

// FakeReader serves scripted particulate readings for tests.
type FakeReader struct {
	// Values is returned by Read.
	Values Concentrations

	// ReadError, if set, is returned by Read.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeReader creates a FakeReader with the given values.
func NewFakeReader(values Concentrations) *FakeReader {
	return &FakeReader{Values: values}
}

// Read returns the scripted values.
func (f *FakeReader) Read() (Concentrations, error) {
	if f.ReadError != nil {
		return Concentrations{}, f.ReadError
	}
	return f.Values, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
