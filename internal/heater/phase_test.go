package heater

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPhaseNextHoldsBeforeThreshold(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	p := Phase{Kind: PhaseHeating, Since: t0}

	next, due := p.next(t0.Add(59*time.Second), time.Minute, 90*time.Second)
	assert.False(t, due)
	assert.Equal(t, p, next)
}

func TestPhaseNextTransitions(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	p := Phase{Kind: PhaseHeating, Since: t0}

	at := t0.Add(time.Minute)
	next, due := p.next(at, time.Minute, 90*time.Second)
	assert.True(t, due)
	assert.Equal(t, Phase{Kind: PhaseSensing, Since: at}, next)

	at2 := at.Add(90 * time.Second)
	next2, due2 := next.next(at2, time.Minute, 90*time.Second)
	assert.True(t, due2)
	assert.Equal(t, Phase{Kind: PhaseHeating, Since: at2}, next2)
}

func TestPhaseKindString(t *testing.T) {
	assert.Equal(t, "HEATING", PhaseHeating.String())
	assert.Equal(t, "SENSING", PhaseSensing.String())
}
