// Package source reads players to be scored from files or databases.
package source

import (
	"context"

	"github.com/okian/posfit/internal/domain/model"
)

// Source supplies the full set of players for a batch run. Rows that
// cannot be parsed are returned with model.Player.Err set rather than
// failing the whole read.
type Source interface {
	Players(ctx context.Context) ([]model.Player, error)
}

// Column names carrying identity rather than attributes.
var (
	idColumns       = []string{"player_id"}
	positionColumns = []string{"sub_position", "natural_pos", "position"}
	overallColumns  = []string{"ovr", "overall"}
)
