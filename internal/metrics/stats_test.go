package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	xs := []float64{10, 20, 30, 40}

	assert.Equal(t, 25.0, percentile(xs, 50))
	assert.Equal(t, 37.0, percentile(xs, 90))
	assert.Equal(t, 10.0, percentile(xs, 0))
	assert.Equal(t, 40.0, percentile(xs, 100))
	assert.Equal(t, 0.0, percentile(nil, 50))
	assert.Equal(t, 7.0, percentile([]float64{7}, 50))
}

func TestMean(t *testing.T) {
	assert.Equal(t, 2.0, mean([]float64{1, 2, 3}))
	assert.Equal(t, 0.0, mean(nil))
}

func TestStddevSample(t *testing.T) {
	// The series from the hourly anomaly example: mean 4.1667, sample
	// stdev ~7.7567.
	xs := []float64{1, 1, 1, 1, 1, 20}
	assert.InDelta(t, 4.1667, mean(xs), 0.001)
	assert.InDelta(t, 7.7567, stddev(xs), 0.001)

	assert.Equal(t, 0.0, stddev([]float64{5}))
	assert.Equal(t, 0.0, stddev(nil))
}

func TestMinMax(t *testing.T) {
	min, max := minMax([]float64{3, 1, 4, 1, 5})
	assert.Equal(t, 1.0, min)
	assert.Equal(t, 5.0, max)

	min, max = minMax(nil)
	assert.Equal(t, 0.0, min)
	assert.Equal(t, 0.0, max)
}
