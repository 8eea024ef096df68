// Package types contains common types used across the application
package types

import "github.com/okian/posfit/internal/domain/position"

// Entry is one row of a per-position ranking.
type Entry struct {
	Rank     int               `json:"rank"`
	PlayerID string            `json:"player_id"`
	Position position.Position `json:"position"`
	Combo    float64           `json:"combo"`
	Fit      float64           `json:"fit"`
}
