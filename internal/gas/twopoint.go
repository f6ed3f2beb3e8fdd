package gas

// ApplyTwoPoint applies the zero/span linear correction layered on
// top of the physical model: (c - zero) × span, floored at zero.
// With zero=0 and span=1 this is the identity.
func ApplyTwoPoint(c, zero, span float64) float64 {
	v := (c - zero) * span
	if v < 0 {
		return 0
	}
	return v
}
