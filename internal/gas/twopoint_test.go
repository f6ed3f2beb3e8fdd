package gas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyTwoPointIdentityDefaults(t *testing.T) {
	for _, c := range []float64{0, 0.5, 9.4, 400, 1000} {
		assert.Equal(t, c, ApplyTwoPoint(c, 0, 1))
	}
}

func TestApplyTwoPointCorrection(t *testing.T) {
	assert.InDelta(t, 9.0, ApplyTwoPoint(5.5, 1.0, 2.0), 1e-9)
}

func TestApplyTwoPointFloorsAtZero(t *testing.T) {
	assert.Equal(t, 0.0, ApplyTwoPoint(0.5, 1.0, 2.0))
}
