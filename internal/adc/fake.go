package adc

import (
	"fmt"

	"github.com/sweeney/air-sensor/internal/gas"
)

// FakeReader serves scripted voltages for tests.
type FakeReader struct {
	// Voltages maps each channel to its current voltage.
	Voltages map[gas.Channel]float64

	// ReadError, if set, is returned by ReadVoltage.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeReader creates a FakeReader with the given voltages.
func NewFakeReader(voltages map[gas.Channel]float64) *FakeReader {
	if voltages == nil {
		voltages = make(map[gas.Channel]float64)
	}
	return &FakeReader{Voltages: voltages}
}

// Set updates one channel's voltage.
func (f *FakeReader) Set(ch gas.Channel, v float64) {
	f.Voltages[ch] = v
}

// ReadVoltage returns the scripted voltage for the channel.
func (f *FakeReader) ReadVoltage(ch gas.Channel) (float64, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	v, ok := f.Voltages[ch]
	if !ok {
		return 0, fmt.Errorf("no voltage scripted for channel %s", ch)
	}
	return v, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
