// Package stats provides unit tests for the reservoir sampler.
package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestReservoir_BoundedSize tests that the sample never exceeds capacity.
func TestReservoir_BoundedSize(t *testing.T) {
	r := NewReservoir(16)
	for i := 0; i < 1000; i++ {
		r.Insert(float64(i))
	}
	assert.Equal(t, 16, r.Len())
	assert.Equal(t, uint64(1000), r.Seen())
}

// TestReservoir_QuantileEdges tests quantile clamping at the extremes.
func TestReservoir_QuantileEdges(t *testing.T) {
	r := NewReservoir(8)
	for _, v := range []float64{5, 1, 3} {
		r.Insert(v)
	}

	assert.Equal(t, 1.0, r.Quantile(0))
	assert.Equal(t, 5.0, r.Quantile(1))
	assert.Equal(t, 3.0, r.Quantile(0.5))
}

// TestReservoir_QuantileInterpolates tests linear interpolation between
// ranked samples rather than nearest-rank selection.
func TestReservoir_QuantileInterpolates(t *testing.T) {
	r := NewReservoir(8)
	for _, v := range []float64{10, 20, 30, 40} {
		r.Insert(v)
	}

	// 0.5 * (4-1) = rank 1.5: halfway between 20 and 30.
	assert.InDelta(t, 25.0, r.Quantile(0.5), 1e-9)
	// 0.9 * 3 = rank 2.7: between 30 and 40.
	assert.InDelta(t, 37.0, r.Quantile(0.9), 1e-9)
}

// TestReservoir_Empty tests the empty-sample behavior.
func TestReservoir_Empty(t *testing.T) {
	r := NewReservoir(8)
	assert.Equal(t, 0.0, r.Quantile(0.5))
	assert.Equal(t, 0, r.Len())
}

// TestReservoir_InsertAfterQuantile tests that sampling continues correctly
// after a quantile query sorted the buffer.
func TestReservoir_InsertAfterQuantile(t *testing.T) {
	r := NewReservoir(8)
	r.Insert(2)
	r.Insert(1)
	_ = r.Quantile(0.5)

	r.Insert(0.5)
	assert.Equal(t, 0.5, r.Quantile(0))
}
