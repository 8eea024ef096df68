package scoring

import (
	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	"github.com/okian/posfit/internal/domain/resolver"
)

type statWeight struct {
	stat   string
	weight float64
}

// GoalkeeperScorer rates goalkeepers from their summary stats. It runs
// alongside the outfield scorer and never changes the best position.
type GoalkeeperScorer struct {
	weights []statWeight
}

// NewGoalkeeperScorer returns a scorer with the standard stat weights.
func NewGoalkeeperScorer() *GoalkeeperScorer {
	return &GoalkeeperScorer{weights: []statWeight{
		{stat: "def", weight: 0.35},
		{stat: "phy", weight: 0.25},
		{stat: "pac", weight: 0.15},
		{stat: "pas", weight: 0.15},
		{stat: "ovr", weight: 0.10},
	}}
}

// IsGoalkeeper reports whether p's natural position is GK.
func IsGoalkeeper(p model.Player) bool {
	np, err := position.Parse(p.NaturalPosition)
	return err == nil && np == position.GK
}

// Score is the weighted mean of the present stats, each clamped to 0..100,
// rounded to one decimal. With no stats present it is neutral.
func (g *GoalkeeperScorer) Score(p model.Player) float64 {
	r := resolver.New(p)
	var sum, total float64
	for _, w := range g.weights {
		v, ok := r.Resolve(w.stat)
		if w.stat == "ovr" && p.Overall != nil {
			v, ok = *p.Overall, true
		}
		if !ok {
			continue
		}
		sum += clamp(v) * w.weight
		total += w.weight
	}
	if total == 0 {
		return NeutralScore
	}
	return round1(sum / total)
}
