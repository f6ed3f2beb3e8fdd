package heater

// Driver sets the heater coil duty cycle.
type Driver interface {
	// SetDuty drives the heater at the given duty ratio in [0, 1].
	SetDuty(duty float64) error

	// Close releases the heater output, leaving it off.
	Close() error
}
