// Package repository persists position-fit results and serves per-position rankings.
package repository

import (
	"context"

	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	"github.com/okian/posfit/internal/domain/types"
)

// ResultStore provides replace-by-key storage of results.
type ResultStore interface {
	// Upsert writes results keyed by player ID, replacing any stored result
	// for the same player.
	Upsert(ctx context.Context, results ...model.Result) error

	// Get returns the stored result for a player.
	// Returns ErrNotFound if the player is unknown.
	Get(ctx context.Context, playerID string) (model.Result, error)

	// TopN returns the n best players for pos ordered by combo desc, player ID asc.
	TopN(ctx context.Context, pos position.Position, n int) ([]types.Entry, error)

	// Rank returns the competition rank of a player at pos: one plus the
	// number of players with a strictly higher combo.
	Rank(ctx context.Context, pos position.Position, playerID string) (types.Entry, error)

	// Count returns the number of stored results.
	Count(ctx context.Context) (int, error)

	Close() error
}

// assignRanks sets competition ranks on entries already sorted by combo desc.
// Equal combos share a rank and the next distinct combo skips ahead.
func assignRanks(entries []types.Entry) {
	for i := range entries {
		if i > 0 && entries[i].Combo == entries[i-1].Combo {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
