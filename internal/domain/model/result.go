package model

import (
	"time"

	"github.com/okian/posfit/internal/domain/position"
)

// Result is the position-fit outcome for one player.
type Result struct {
	PlayerID        string                        `json:"player_id"`
	NaturalPosition string                        `json:"natural_position,omitempty"`
	Overall         *float64                      `json:"overall,omitempty"`
	Fit             map[position.Position]float64 `json:"fit"`
	Rel             map[position.Position]float64 `json:"rel"`
	Combo           map[position.Position]float64 `json:"combo"`
	BestPosition    position.Position             `json:"best_position"`
	BestScore       float64                       `json:"best_score"`
	GoalkeeperFit   *float64                      `json:"goalkeeper_fit,omitempty"`
	Fallback        bool                          `json:"fallback"`
	RunID           string                        `json:"run_id,omitempty"`
	ScoredAt        time.Time                     `json:"scored_at,omitzero"`
}

// NewResult returns a Result for p with empty score maps.
func NewResult(p Player) Result {
	return Result{
		PlayerID:        p.ID,
		NaturalPosition: p.NaturalPosition,
		Overall:         p.Overall,
		Fit:             make(map[position.Position]float64, position.Count),
		Rel:             make(map[position.Position]float64, position.Count),
		Combo:           make(map[position.Position]float64, position.Count),
	}
}
