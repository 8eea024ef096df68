package loadtest

import (
	"fmt"
	"math"

	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
)

const (
	tolerance     = 1e-9
	roundingSlack = 0.1 + tolerance
)

// verifyResult lists every way res breaks the scoring rules.
func verifyResult(res model.Result) []string {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	outfield := position.Outfield()
	for name, scores := range map[string]map[position.Position]float64{"fit": res.Fit, "rel": res.Rel, "combo": res.Combo} {
		if len(scores) != len(outfield) {
			add("%s has %d positions, want %d", name, len(scores), len(outfield))
		}
		for _, pos := range outfield {
			v, ok := scores[pos]
			switch {
			case !ok:
				add("%s missing %s", name, pos)
			case v < 0 || v > 100:
				add("%s %s = %.1f out of range", name, pos, v)
			case math.Abs(v*10-math.Round(v*10)) > 1e-6:
				add("%s %s = %v not rounded to one decimal", name, pos, v)
			}
		}
	}
	if len(problems) > 0 || res.Fallback {
		return problems
	}

	// The service ranks on unrounded values, so emitted REL and combo can
	// drift from what the rounded fits alone would give by one rounding step.
	fmin, fmax := math.Inf(1), math.Inf(-1)
	bestScore := math.Inf(-1)
	for _, pos := range outfield {
		fmin = math.Min(fmin, res.Fit[pos])
		fmax = math.Max(fmax, res.Fit[pos])
		bestScore = math.Max(bestScore, res.Combo[pos])
		blend := 0.5*res.Fit[pos] + 0.5*res.Rel[pos]
		if math.Abs(res.Combo[pos]-blend) > roundingSlack {
			add("combo %s = %.1f, want about %.2f", pos, res.Combo[pos], blend)
		}
	}

	if fmax > fmin {
		var sawZero, sawFull bool
		for _, a := range outfield {
			sawZero = sawZero || res.Rel[a] == 0
			sawFull = sawFull || res.Rel[a] == 100
			for _, b := range outfield {
				if res.Fit[a] > res.Fit[b] && res.Rel[a] < res.Rel[b] {
					add("rel %s = %.1f below rel %s = %.1f despite higher fit", a, res.Rel[a], b, res.Rel[b])
				}
			}
		}
		if !sawZero || !sawFull {
			add("rel does not span 0..100 although fits differ")
		}
	}

	if got, ok := res.Combo[res.BestPosition]; !ok || math.Abs(got-bestScore) > tolerance {
		add("best position %s has combo %.1f, want the maximum %.1f", res.BestPosition, got, bestScore)
	}
	if math.Abs(res.BestScore-bestScore) > tolerance {
		add("best score %.1f, want %.1f", res.BestScore, bestScore)
	}
	return problems
}
