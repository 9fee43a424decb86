package features

import (
	"maps"
	"slices"
)

// Duration is an effect duration that is either one value for every effect
// of a segment or a value per effect id. Builders resolve it once with For.
type Duration interface {
	// For returns the duration for the given effect id.
	For(id string) (float64, bool)
	isDuration()
}

// Uniform applies the same duration to every effect.
type Uniform float64

// For implements Duration.
func (u Uniform) For(string) (float64, bool) {
	return float64(u), u > 0
}

func (Uniform) isDuration() {}

// PerKey assigns durations per effect id.
type PerKey map[string]float64

// For implements Duration.
func (p PerKey) For(id string) (float64, bool) {
	v, ok := p[id]
	return v, ok && v > 0
}

// Keys returns the effect ids in sorted order.
func (p PerKey) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

func (PerKey) isDuration() {}
