// Package model contains domain models passed between layers.
package model

import "math"

// Player is one scoring input: identity fields plus a flat attribute map.
// A key absent from Attributes means the value is missing.
type Player struct {
	ID              string
	NaturalPosition string
	Overall         *float64
	Attributes      map[string]float64
	// Err is set by sources for rows they could not parse; such players
	// receive the neutral fallback result.
	Err error
}

// Value returns the attribute stored under exactly name. NaN counts as missing.
func (p Player) Value(name string) (float64, bool) {
	v, ok := p.Attributes[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 { return &v }
