// Package reference holds the per-position feature tables used for scoring:
// which features matter for a position, their weight and correlation sign,
// and the population mean and standard deviation used to normalise them.
package reference

import (
	"fmt"
	"math"

	"github.com/okian/posfit/internal/domain/position"
)

// Feature is one weighted input of a position's fit score.
type Feature struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Sign   float64 `json:"sign"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// PositionReference is the ordered feature table for one position.
type PositionReference struct {
	Position position.Position `json:"position"`
	Features []Feature         `json:"features"`
}

// Validate checks the keying and numeric constraints of the table.
// An empty feature list is valid and scores neutral.
func (r PositionReference) Validate() error {
	if !r.Position.IsOutfield() {
		return fmt.Errorf("%w: position %q", ErrInvalidReference, r.Position)
	}
	seen := make(map[string]struct{}, len(r.Features))
	for _, f := range r.Features {
		if f.Name == "" {
			return fmt.Errorf("%w: %s: empty feature name", ErrInvalidReference, r.Position)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate feature %q", ErrInvalidReference, r.Position, f.Name)
		}
		seen[f.Name] = struct{}{}
		if !(f.Weight > 0) || math.IsInf(f.Weight, 0) {
			return fmt.Errorf("%w: %s.%s: weight must be positive, got %v", ErrInvalidReference, r.Position, f.Name, f.Weight)
		}
		if f.Sign != 1 && f.Sign != -1 {
			return fmt.Errorf("%w: %s.%s: sign must be +1 or -1, got %v", ErrInvalidReference, r.Position, f.Name, f.Sign)
		}
		if math.IsNaN(f.Mean) || math.IsInf(f.Mean, 0) {
			return fmt.Errorf("%w: %s.%s: mean is not finite", ErrInvalidReference, r.Position, f.Name)
		}
		if !(f.StdDev >= 0) || math.IsInf(f.StdDev, 0) {
			return fmt.Errorf("%w: %s.%s: stddev must be >= 0, got %v", ErrInvalidReference, r.Position, f.Name, f.StdDev)
		}
	}
	return nil
}

// Table maps positions to their reference. A position missing from the
// table scores neutral. A Table is read-only once built.
type Table struct {
	refs map[position.Position]*PositionReference
}

// NewTable builds a table and fails on the first invalid reference.
func NewTable(refs ...PositionReference) (*Table, error) {
	t := &Table{refs: make(map[position.Position]*PositionReference, len(refs))}
	for _, r := range refs {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.refs[r.Position]; dup {
			return nil, fmt.Errorf("%w: duplicate position %s", ErrInvalidReference, r.Position)
		}
		t.refs[r.Position] = clone(r)
	}
	if len(t.refs) == 0 {
		return nil, ErrNoReferenceData
	}
	return t, nil
}

// Build assembles a table from loader output. Invalid, duplicate or empty
// positions are excluded and reported; only an empty result is an error.
func Build(refs []PositionReference, report *LoadReport) (*Table, error) {
	t := &Table{refs: make(map[position.Position]*PositionReference, len(refs))}
	for _, r := range refs {
		if err := r.Validate(); err != nil {
			report.warnf("%s excluded: %v", r.Position, err)
			continue
		}
		if len(r.Features) == 0 {
			report.warnf("%s excluded: no usable features", r.Position)
			continue
		}
		if _, dup := t.refs[r.Position]; dup {
			report.warnf("%s excluded: duplicate position", r.Position)
			continue
		}
		t.refs[r.Position] = clone(r)
	}
	if len(t.refs) == 0 {
		return nil, ErrNoReferenceData
	}
	for _, p := range position.Outfield() {
		if _, ok := t.refs[p]; !ok {
			report.warnf("%s has no reference data and will score neutral", p)
		}
	}
	return t, nil
}

func clone(r PositionReference) *PositionReference {
	return &PositionReference{
		Position: r.Position,
		Features: append([]Feature(nil), r.Features...),
	}
}

// Get returns the reference for p. Callers must not modify it.
func (t *Table) Get(p position.Position) (*PositionReference, bool) {
	r, ok := t.refs[p]
	return r, ok
}

// Positions returns the positions present in the table in canonical order.
func (t *Table) Positions() []position.Position {
	out := make([]position.Position, 0, len(t.refs))
	for _, p := range position.Outfield() {
		if _, ok := t.refs[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of positions with reference data.
func (t *Table) Len() int { return len(t.refs) }

// FeatureNames returns every feature name used by the table in canonical
// position order, each name once.
func (t *Table) FeatureNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, p := range t.Positions() {
		for _, f := range t.refs[p].Features {
			if _, ok := seen[f.Name]; ok {
				continue
			}
			seen[f.Name] = struct{}{}
			names = append(names, f.Name)
		}
	}
	return names
}

// LoadReport collects non-fatal problems found while loading a table.
type LoadReport struct {
	Warnings []string
}

func (r *LoadReport) warnf(format string, args ...interface{}) {
	if r == nil {
		return
	}
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// normalizeSign maps a stored correlation or sign to +1/-1.
// Zero is reported as unusable.
func normalizeSign(v float64) (float64, bool) {
	switch {
	case v > 0:
		return 1, true
	case v < 0:
		return -1, true
	default:
		return 0, false
	}
}
