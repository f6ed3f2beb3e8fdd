//go:build !linux

package heater

import "errors"

// PWMDriver is not available on non-Linux platforms.
type PWMDriver struct{}

// NewPWMDriver returns an error on non-Linux platforms.
func NewPWMDriver(chipName string, pin int) (*PWMDriver, error) {
	return nil, errors.New("heater: gpio pwm not supported on this platform (requires Linux)")
}

// SetDuty is not implemented on non-Linux platforms.
func (d *PWMDriver) SetDuty(duty float64) error {
	return errors.New("heater: not supported")
}

// Close is not implemented on non-Linux platforms.
func (d *PWMDriver) Close() error {
	return nil
}
