// Package resolver maps requested feature names onto a player's attributes.
//
// Lookup order for a feature: the exact key, its aliases, then the parent
// aggregate skill (pace, shooting, passing, dribbling, defending, physical).
// If none of those keys is present the same list is retried ignoring case.
// A feature that still cannot be found is missing; resolution never fails.
package resolver

import (
	"sort"
	"strings"

	"github.com/okian/posfit/internal/domain/model"
)

// Resolver resolves features for a single player. It is not safe for
// concurrent use; create one per player.
type Resolver struct {
	player model.Player
	folded map[string]string
}

// New returns a Resolver over p's attributes.
func New(p model.Player) *Resolver {
	return &Resolver{player: p}
}

// Resolve returns the value for feature, or false when it is missing.
func (r *Resolver) Resolve(feature string) (float64, bool) {
	keys := candidates(feature)
	for _, k := range keys {
		if v, ok := r.player.Value(k); ok {
			return v, true
		}
	}
	for _, k := range keys {
		if orig, ok := r.foldedIndex()[strings.ToLower(k)]; ok {
			if v, ok := r.player.Value(orig); ok {
				return v, true
			}
		}
	}
	return 0, false
}

// foldedIndex maps lower-cased keys to the original key. When several keys
// fold to the same string the lexically smallest original wins.
func (r *Resolver) foldedIndex() map[string]string {
	if r.folded != nil {
		return r.folded
	}
	keys := make([]string, 0, len(r.player.Attributes))
	for k := range r.player.Attributes {
		if _, ok := r.player.Value(k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	r.folded = make(map[string]string, len(keys))
	for _, k := range keys {
		lk := strings.ToLower(k)
		if _, seen := r.folded[lk]; !seen {
			r.folded[lk] = k
		}
	}
	return r.folded
}
