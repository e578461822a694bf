package schema

import (
	"fmt"
	"math"
)

// ClipRule clamps one feature column into the closed interval [Min, Max].
type ClipRule struct {
	Column string  `yaml:"column" json:"column"`
	Min    float64 `yaml:"min" json:"min"`
	Max    float64 `yaml:"max" json:"max"`
}

// Apply clamps v into the rule's range. It is the only clipping
// implementation: the dataset loader maps it over a column and the record
// normalizer applies it to a single field.
func (r ClipRule) Apply(v float64) float64 {
	return Clip(v, r.Min, r.Max)
}

// Clip returns lo when v < lo, hi when v > hi and v otherwise. Both bounds
// are inclusive. NaN is returned unchanged; callers reject non-finite input
// before normalizing.
func Clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (r ClipRule) validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
		return fmt.Errorf("clip rule for %q has NaN bound", r.Column)
	}
	if r.Min > r.Max {
		return fmt.Errorf("clip rule for %q has min %g > max %g", r.Column, r.Min, r.Max)
	}
	return nil
}
