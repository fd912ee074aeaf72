package ta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReturnsSkipsNonPositiveBase(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.1, -1, -0.5}, Returns([]float64{100, 110, 0, 5, 2.5}), 1e-9)
	assert.Empty(t, Returns([]float64{100}))
}

func TestStdDev(t *testing.T) {
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
	assert.Zero(t, StdDev(nil))
	assert.True(t, math.IsNaN(Mean(nil)))
}

func TestPercentile(t *testing.T) {
	vals := []float64{5, 1, 4, 2, 3}
	assert.InDelta(t, 1.2, Percentile(vals, 5), 1e-9)
	assert.InDelta(t, 3.0, Percentile(vals, 50), 1e-9)
	assert.InDelta(t, 7.0, Percentile([]float64{7}, 5), 1e-9)
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, vals)
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, 0.5, MaxDrawdown([]float64{100, 120, 60, 90, 130, 110}), 1e-9)
	assert.Zero(t, MaxDrawdown([]float64{1, 2, 3}))
}

func TestCompoundedGrowth(t *testing.T) {
	g, n := CompoundedGrowth([]float64{100, 110, 121, 250}, 0.5)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 1.21, g, 1e-9)
}
