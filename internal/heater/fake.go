package heater

// FakeDriver records duty changes for test assertions.
type FakeDriver struct {
	// Duties contains every duty ratio passed to SetDuty, in order.
	Duties []float64

	// SetError, if set, is returned by SetDuty.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeDriver creates a FakeDriver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

// SetDuty records the duty ratio.
func (f *FakeDriver) SetDuty(duty float64) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Duties = append(f.Duties, duty)
	return nil
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.Closed = true
	return nil
}

// LastDuty returns the most recent duty ratio, or -1 if none was set.
func (f *FakeDriver) LastDuty() float64 {
	if len(f.Duties) == 0 {
		return -1
	}
	return f.Duties[len(f.Duties)-1]
}
