// Package pm provides particulate matter readings. The real
// implementation parses the PMS5003's framed UART protocol; the fake
// allows testing without hardware.
package pm

// Concentrations holds one set of particulate readings in µg/m³
// (atmospheric-environment values).
type Concentrations struct {
	PM1  float64
	PM25 float64
	PM10 float64
}

// Reader reads validated particulate concentrations.
type Reader interface {
	// Read returns the latest checksum-verified concentrations.
	Read() (Concentrations, error)

	// Close releases the underlying transport.
	Close() error
}
