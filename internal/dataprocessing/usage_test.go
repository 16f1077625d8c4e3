package dataprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveUsage(t *testing.T) {
	tests := []struct {
		name     string
		stock    []float64
		capacity float64
		want     []float64
	}{
		{
			name:     "consumption with a partial restock",
			stock:    []float64{100, 80, 95, 20},
			capacity: 100,
			want:     []float64{0, 20, 0, 75},
		},
		{
			name:     "flat at capacity",
			stock:    []float64{50, 50},
			capacity: 50,
			want:     []float64{0, 0},
		},
		{
			name:     "drop to a level equal to capacity is zeroed",
			stock:    []float64{120, 100, 90},
			capacity: 100,
			want:     []float64{0, 0, 10},
		},
		{
			name:     "no capacity never maxes out",
			stock:    []float64{30, 20, 20, 5},
			capacity: 0,
			want:     []float64{0, 10, 0, 15},
		},
		{
			name:     "single month",
			stock:    []float64{7},
			capacity: 10,
			want:     []float64{0},
		},
		{
			name:     "empty",
			stock:    []float64{},
			capacity: 10,
			want:     []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveUsage(tt.stock, tt.capacity)
			assert.Equal(t, tt.want, got)
			for _, u := range got {
				assert.False(t, math.Signbit(u), "usage must not be negative or -0")
			}
		})
	}
}

func TestMeanStd(t *testing.T) {
	mean, std, ok := meanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.True(t, ok)
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, 2.138089935, std, 1e-9)

	_, _, ok = meanStd([]float64{3})
	assert.False(t, ok)

	mean, _, ok = meanStd([]float64{1, math.NaN(), 3, math.Inf(1)})
	assert.True(t, ok)
	assert.InDelta(t, 2.0, mean, 1e-12)
}

func TestWithinBand(t *testing.T) {
	t.Run("zero deviation keeps everything", func(t *testing.T) {
		assert.Equal(t, []bool{true, true, true}, withinBand([]float64{4, 4, 4}, 3))
	})

	t.Run("undefined deviation keeps everything", func(t *testing.T) {
		assert.Equal(t, []bool{true}, withinBand([]float64{4}, 3))
	})

	t.Run("non-finite values are left for the final cleanup", func(t *testing.T) {
		keep := withinBand([]float64{1, math.NaN(), 2}, 3)
		assert.Equal(t, []bool{true, true, true}, keep)
	})

	t.Run("far value rejected", func(t *testing.T) {
		values := make([]float64, 20)
		for i := range values {
			values[i] = 100 + float64(i%2)
		}
		values[5] = 10000
		keep := withinBand(values, 3)
		for i, k := range keep {
			assert.Equal(t, i != 5, k, "index %d", i)
		}
	})
}
