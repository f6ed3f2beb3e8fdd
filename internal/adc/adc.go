// Package adc provides per-channel raw voltage readings with
// hardware abstraction. The real implementation reads a line
// protocol from the sensor MCU over a serial port; the fake allows
// testing without hardware.
package adc

import "github.com/sweeney/air-sensor/internal/gas"

// Reader reads raw ADC voltages per gas channel.
type Reader interface {
	// ReadVoltage returns the latest raw voltage for the channel,
	// in volts referenced to the channel's ADC rail.
	ReadVoltage(ch gas.Channel) (float64, error)

	// Close releases the underlying transport.
	Close() error
}
