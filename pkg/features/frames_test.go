package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameStarts(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want []int
	}{
		{"empty", 0, nil},
		{"shorter than a frame", 100, []int{0}},
		{"exactly one frame", 2048, []int{0}},
		{"partial hop is dropped", 2048 + 511, []int{0}},
		{"three frames", 2048 + 1024, []int{0, 512, 1024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, frameStarts(tt.n, 2048, 512))
		})
	}
}

func TestRMS(t *testing.T) {
	assert.Empty(t, rms(nil, 2048, 512))

	got := rms([]float64{3, 4}, 2048, 512)
	assert.Equal(t, []float64{math.Sqrt(12.5)}, got)

	constant := make([]float64, 4096)
	for i := range constant {
		constant[i] = -0.25
	}
	for _, v := range rms(constant, 2048, 512) {
		assert.InDelta(t, 0.25, v, 1e-12)
	}
}

func TestMelScaleRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 200, 999, 1000, 4000, 11025} {
		assert.InDelta(t, hz, melToHz(hzToMel(hz)), 1e-6)
	}
	assert.InDelta(t, 15.0, hzToMel(1000), 1e-12)
}

func TestMelFilterBank(t *testing.T) {
	bank := melFilterBank(16000, 2048, 128)
	assert.Len(t, bank, 128)
	for b, row := range bank {
		assert.Len(t, row, 1025)
		var sum float64
		for _, w := range row {
			assert.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		assert.Positive(t, sum, "band %d is empty", b)
	}
}

func TestMFCC_ConstantSpectrumOnlyHasDC(t *testing.T) {
	melDB := [][]float64{{-20, -20, -20, -20}}
	out := mfcc(melDB, 3)

	assert.InDelta(t, -40, out[0][0], 1e-9)
	assert.InDelta(t, 0, out[1][0], 1e-9)
	assert.InDelta(t, 0, out[2][0], 1e-9)
}

func TestOnsetStrength(t *testing.T) {
	melDB := [][]float64{
		{0, 0},
		{2, -4},
		{2, 2},
	}
	env := onsetStrength(melDB)
	assert.Equal(t, []float64{0, 1, 3}, env)
}
