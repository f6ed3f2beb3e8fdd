// Package heater drives the MQ-7 CO sensor's two-phase duty cycle.
// The sensor needs a 60 s high-temperature clean phase before each
// 90 s low-temperature sense phase; readings are only physically
// meaningful in the back half of the sense phase. The state machine
// is pure and clock-injected; the heater drive sits behind a Driver.
package heater

import "time"

// PhaseKind tags the two heater phases.
type PhaseKind int

const (
	// PhaseHeating is the high-duty clean/burn-off phase.
	PhaseHeating PhaseKind = iota
	// PhaseSensing is the reduced-duty measurement phase.
	PhaseSensing
	// PhaseOff marks a heater that is not being cycled at all, as
	// when the CO channel is disabled.
	PhaseOff
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseSensing:
		return "SENSING"
	case PhaseOff:
		return "OFF"
	}
	return "HEATING"
}

// Phase is the tagged state of the duty cycle: which phase is active
// and when it started. Exactly one phase is active at a time.
type Phase struct {
	Kind  PhaseKind
	Since time.Time
}

// next returns the phase that should follow p at the given instant,
// and whether a transition is due. Pure function of its inputs.
func (p Phase) next(now time.Time, heat, sense time.Duration) (Phase, bool) {
	switch p.Kind {
	case PhaseHeating:
		if now.Sub(p.Since) >= heat {
			return Phase{Kind: PhaseSensing, Since: now}, true
		}
	case PhaseSensing:
		if now.Sub(p.Since) >= sense {
			return Phase{Kind: PhaseHeating, Since: now}, true
		}
	}
	return p, false
}
