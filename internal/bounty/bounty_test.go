package bounty

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		low   float64
		high  float64
		want  float64
	}{
		{"zero score pays lowest", 0, 0.01, 0.1, 0.01},
		{"full score pays highest", 10, 0.01, 0.1, 0.1},
		{"midpoint", 5, 100, 200, 150},
		{"six of ten", 6.0, 0.01, 0.10, 0.064},
		{"rounded to eight decimals", 10.0 / 3, 1, 2, 1.33333333},
		{"negative clamps up", -2, 1, 2, 1},
		{"NaN clamps up", math.NaN(), 1, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Compute(tt.score, tt.low, tt.high), 1e-12)
		})
	}
}

func TestCompute_Monotonic(t *testing.T) {
	prev := Compute(0, 0.01, 0.1)
	for s := 0.1; s <= 10.0001; s += 0.1 {
		got := Compute(s, 0.01, 0.1)
		assert.GreaterOrEqual(t, got, prev, "score %v", s)
		prev = got
	}
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(0.01, 0.1))

	for _, r := range [][2]float64{{0, 1}, {-1, 1}, {2, 2}, {3, 2}, {math.NaN(), 1}, {1, math.Inf(1)}} {
		assert.ErrorIs(t, ValidateRange(r[0], r[1]), ErrInvalidRange, "range %v", r)
	}
}
