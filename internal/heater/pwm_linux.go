//go:build linux

package heater

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// pwmPeriod is the software PWM period for the heater MOSFET gate.
// The coil's thermal mass makes it insensitive to the exact rate.
const pwmPeriod = 10 * time.Millisecond

// PWMDriver drives the heater MOSFET through a GPIO line with
// software PWM.
type PWMDriver struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	mu   sync.Mutex
	duty float64

	stop chan struct{}
	done chan struct{}
}

// NewPWMDriver requests the heater line as an output, initially off.
func NewPWMDriver(chipName string, pin int) (*PWMDriver, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request heater pin %d: %w", pin, err)
	}

	d := &PWMDriver{
		chip: chip,
		line: line,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go d.run()
	return d, nil
}

// SetDuty sets the drive ratio, clamped to [0, 1].
func (d *PWMDriver) SetDuty(duty float64) error {
	if duty < 0 {
		duty = 0
	}
	if duty > 1 {
		duty = 1
	}
	d.mu.Lock()
	d.duty = duty
	d.mu.Unlock()
	return nil
}

// run toggles the line each period according to the current duty.
// Full-on and full-off duties hold the line steady.
func (d *PWMDriver) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		duty := d.duty
		d.mu.Unlock()

		on := time.Duration(float64(pwmPeriod) * duty)
		off := pwmPeriod - on

		if on > 0 {
			d.line.SetValue(1)
			if !d.sleep(on) {
				return
			}
		}
		if off > 0 {
			d.line.SetValue(0)
			if !d.sleep(off) {
				return
			}
		}
	}
}

func (d *PWMDriver) sleep(dur time.Duration) bool {
	select {
	case <-d.stop:
		return false
	case <-time.After(dur):
		return true
	}
}

// Close stops the PWM loop and leaves the heater off.
func (d *PWMDriver) Close() error {
	close(d.stop)
	<-d.done

	var errs []error
	if err := d.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("drop heater line: %w", err))
	}
	if err := d.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close heater line: %w", err))
	}
	if err := d.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
