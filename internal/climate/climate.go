// Package climate provides temperature and humidity readings for
// environmental compensation. The real implementation drives an
// AHT20 over I²C; the fake allows testing without hardware.
package climate

// Reader reads ambient temperature and relative humidity.
type Reader interface {
	// Read returns temperature in °C and relative humidity in %.
	// On failure the engine degrades compensation to identity, so
	// errors here are never fatal.
	Read() (temperatureC, humidityPct float64, err error)

	// Close releases the bus.
	Close() error
}
