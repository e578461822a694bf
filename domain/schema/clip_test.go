package schema

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClip_BoundariesAreInclusive(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"below range", -0.5, 0},
		{"lower bound", 0, 0},
		{"inside range", 1.1, 1.1},
		{"upper bound", 2, 2},
		{"above range", 2.7, 2},
		{"negative infinity", math.Inf(-1), 0},
		{"positive infinity", math.Inf(1), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clip(tt.in, 0, 2))
		})
	}
}

func TestClip_IdempotentAndBounded(t *testing.T) {
	rule := ClipRule{Column: SPIEarly, Min: 0, Max: 2}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		x := (rng.Float64() - 0.5) * 20
		once := rule.Apply(x)
		assert.Equal(t, once, rule.Apply(once))
		assert.GreaterOrEqual(t, once, 0.0)
		assert.LessOrEqual(t, once, 2.0)
	}
}

func TestClip_NaNPassesThrough(t *testing.T) {
	assert.True(t, math.IsNaN(Clip(math.NaN(), 0, 2)))
}
