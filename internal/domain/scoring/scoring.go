// Package scoring computes per-position fit scores for players.
//
// For every outfield position the player's resolved feature values are
// turned into z-scores against the position's reference statistics,
// signed, weighted and averaged, then mapped to 0..100 as 50 + 10*z. The
// nine fits are min-max scaled per player into REL, blended with the fit
// into a combo score, and the position with the highest combo wins.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	"github.com/okian/posfit/internal/domain/reference"
	"github.com/okian/posfit/internal/domain/resolver"
	"github.com/okian/posfit/pkg/logger"
)

// Blend weights and the neutral score.
const (
	FitWeight    = 0.5
	RelWeight    = 0.5
	NeutralScore = 50.0

	minScore = 0.0
	maxScore = 100.0
	zScale   = 10.0
)

// Scorer scores players against a reference table. It holds no mutable
// state and is safe for concurrent use.
type Scorer struct {
	table      *reference.Table
	positions  []position.Position
	goalkeeper *GoalkeeperScorer
	logger     logger.Logger
}

// NewScorer creates a scorer over table.
func NewScorer(table *reference.Table, opts ...Option) (*Scorer, error) {
	if table == nil || table.Len() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoReference, reference.ErrNoReferenceData)
	}
	s := &Scorer{
		table:     table,
		positions: position.Outfield(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("scoring")
	}
	return s, nil
}

// Table returns the reference table the scorer was built with.
func (s *Scorer) Table() *reference.Table { return s.table }

// Score computes the result for p. It returns ErrInvalidPlayer for players
// without an ID or flagged as malformed by their source.
func (s *Scorer) Score(p model.Player) (model.Result, error) {
	if p.ID == "" {
		return model.Result{}, fmt.Errorf("%w: empty player id", ErrInvalidPlayer)
	}
	if p.Err != nil {
		return model.Result{}, fmt.Errorf("%w: %s: %w", ErrInvalidPlayer, p.ID, p.Err)
	}

	r := resolver.New(p)
	res := model.NewResult(p)

	// REL, combo and the best scan run on unrounded values; rounding is
	// applied only to what is emitted.
	fits := make([]float64, len(s.positions))
	fmin, fmax := math.Inf(1), math.Inf(-1)
	for i, pos := range s.positions {
		fits[i] = NeutralScore
		if ref, ok := s.table.Get(pos); ok {
			fits[i] = Fit(r, ref)
		}
		fmin = math.Min(fmin, fits[i])
		fmax = math.Max(fmax, fits[i])
	}

	best, bestScore := position.Position(""), math.Inf(-1)
	for i, pos := range s.positions {
		rel := NeutralScore
		if fmax > fmin {
			rel = 100 * (fits[i] - fmin) / (fmax - fmin)
		}
		combo := FitWeight*fits[i] + RelWeight*rel
		res.Fit[pos] = round1(fits[i])
		res.Rel[pos] = round1(rel)
		res.Combo[pos] = round1(combo)
		if combo > bestScore {
			best, bestScore = pos, combo
		}
	}
	res.BestPosition = best
	res.BestScore = round1(bestScore)

	if s.goalkeeper != nil && IsGoalkeeper(p) {
		gk := s.goalkeeper.Score(p)
		res.GoalkeeperFit = &gk
	}
	return res, nil
}

// ScoreSafe scores p and never fails: any error or panic is logged and the
// neutral fallback result is returned instead.
func (s *Scorer) ScoreSafe(ctx context.Context, p model.Player) (res model.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error(ctx, "panic while scoring player",
				logger.String("player_id", p.ID),
				logger.Any("panic", rec),
			)
			res = Fallback(p)
		}
	}()

	res, err := s.Score(p)
	if err != nil {
		s.logger.Warn(ctx, "scoring failed, using fallback",
			logger.String("player_id", p.ID),
			logger.Error(err),
		)
		return Fallback(p)
	}
	return res
}

// Fit computes one position's fit for the player behind r. Missing and
// non-finite values are skipped; with nothing resolved the fit is neutral.
func Fit(r *resolver.Resolver, ref *reference.PositionReference) float64 {
	var num, den float64
	for _, f := range ref.Features {
		v, ok := r.Resolve(f.Name)
		if !ok || math.IsInf(v, 0) {
			continue
		}
		z := 0.0
		if f.StdDev != 0 {
			z = (v - f.Mean) / f.StdDev
		}
		num += f.Weight * z * f.Sign
		den += f.Weight
	}
	if den <= 0 {
		return NeutralScore
	}
	return clamp(NeutralScore + zScale*num/den)
}

// Fallback is the neutral result for a player that could not be scored.
// The best position is the player's natural position when it is known,
// otherwise position.Default.
func Fallback(p model.Player) model.Result {
	res := model.NewResult(p)
	for _, pos := range position.Outfield() {
		res.Fit[pos] = NeutralScore
		res.Rel[pos] = NeutralScore
		res.Combo[pos] = NeutralScore
	}
	res.BestPosition = position.Default
	if np, err := position.Parse(p.NaturalPosition); err == nil {
		res.BestPosition = np
	}
	res.BestScore = NeutralScore
	res.Fallback = true
	return res
}

func clamp(v float64) float64 {
	return math.Max(minScore, math.Min(maxScore, v))
}

// round1 rounds half away from zero to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
