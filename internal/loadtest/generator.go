package loadtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	"github.com/okian/posfit/pkg/logger"
)

const randomFloatDivisor = 1000000

// Attribute value ranges per performer tier, on the 0..100 rating scale.
var tiers = []struct{ min, span float64 }{
	{45, 25}, // average, most common
	{45, 25},
	{65, 15}, // good
	{75, 15}, // high
	{85, 12}, // elite, rare
	{25, 25}, // low
	{20, 75}, // wide
}

const attributeNoise = 15

// getRandomFloat returns a random float64 in [0,1) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomIndex(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generatePlayers creates cfg.NumPlayers players with unique IDs.
func generatePlayers(ctx context.Context, cfg *Config) ([]model.Player, error) {
	logger.Get().Info(ctx, "generating players", logger.Int("players", cfg.NumPlayers))

	players := make([]model.Player, cfg.NumPlayers)
	for i := range players {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during player generation: %w", err)
		}
		players[i] = generatePlayer(uuid.NewString(), cfg.Attributes, cfg.MissingPct)
	}
	return players, nil
}

// generatePlayer draws a tier for the player, then each attribute around it.
func generatePlayer(id string, attributes []string, missingPct float64) model.Player {
	positions := append(position.Outfield(), position.GK)
	tier := tiers[randomIndex(len(tiers))]
	base := tier.min + getRandomFloat()*tier.span

	p := model.Player{
		ID:              id,
		NaturalPosition: string(positions[randomIndex(len(positions))]),
		Overall:         model.Float(roundInt(base)),
		Attributes:      make(map[string]float64, len(attributes)),
	}
	for _, name := range attributes {
		if missingPct > 0 && getRandomFloat() < missingPct {
			continue
		}
		v := base + (getRandomFloat()*2-1)*attributeNoise
		p.Attributes[name] = roundInt(min(99, max(1, v)))
	}
	return p
}

func roundInt(v float64) float64 { return math.Round(v) }
