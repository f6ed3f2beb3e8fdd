package gas

// Smoother applies per-channel exponential smoothing to raw voltages.
type Smoother struct {
	state map[Channel]float64
}

// NewSmoother creates an empty Smoother. Each channel initializes on
// its first sample.
func NewSmoother() *Smoother {
	return &Smoother{state: make(map[Channel]float64)}
}

// Smooth folds a raw voltage into the channel's smoothed value and
// returns the new smoothed value. The first sample for a channel
// seeds the state directly, so there is no startup transient.
func (s *Smoother) Smooth(ch Channel, raw float64) float64 {
	prev, ok := s.state[ch]
	if !ok {
		s.state[ch] = raw
		return raw
	}
	alpha := ParamsFor(ch).Alpha
	next := alpha*raw + (1-alpha)*prev
	s.state[ch] = next
	return next
}

// Value returns the current smoothed voltage for a channel, if any.
func (s *Smoother) Value(ch Channel) (float64, bool) {
	v, ok := s.state[ch]
	return v, ok
}

// Reset discards the channel's smoothing state. The next sample
// seeds it directly.
func (s *Smoother) Reset(ch Channel) {
	delete(s.state, ch)
}
