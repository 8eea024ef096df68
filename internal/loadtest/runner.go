package loadtest

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/pkg/logger"
)

const directoryPermission = 0o750

// Run executes the complete load test. It fails with ErrInconsistent when any
// returned result breaks the scoring rules.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("loadtest")
	stats := &Stats{StartTime: time.Now(), BestPositions: make(map[string]int)}

	log.Info(ctx, "starting posfit load test",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("players", cfg.NumPlayers),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return stats, err
	}

	players, err := generatePlayers(ctx, cfg)
	if err != nil {
		return stats, fmt.Errorf("player generation failed: %w", err)
	}
	stats.Generated = len(players)

	if cfg.OutputFile != "" {
		if err := savePlayersCSV(cfg.OutputFile, cfg.Attributes, players); err != nil {
			log.Warn(ctx, "failed to save players", logger.Error(err))
		}
	}

	results := scorePlayers(ctx, cfg, players, stats)
	for i, res := range results {
		if res.PlayerID == "" {
			continue
		}
		if res.PlayerID != players[i].ID {
			stats.Inconsistent++
			continue
		}
		if res.Fallback {
			stats.Fallbacks++
		}
		stats.BestPositions[string(res.BestPosition)]++
		if problems := verifyResult(res); len(problems) > 0 {
			stats.Inconsistent++
			if cfg.Verbose {
				log.Warn(ctx, "inconsistent result", logger.String("player_id", res.PlayerID), logger.Any("problems", problems))
			}
		}
	}
	stats.Duration = time.Since(stats.StartTime)

	displayFinalStats(ctx, log, stats)
	if stats.Inconsistent > 0 {
		return stats, fmt.Errorf("%w: %d of %d results", ErrInconsistent, stats.Inconsistent, stats.Successful)
	}
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	resp, err := newHTTPClient(cfg.Timeout).Get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// savePlayersCSV writes players in the layout read by the CSV player source.
func savePlayersCSV(path string, attributes []string, players []model.Player) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"player_id", "sub_position", "ovr"}, attributes...)
	if err := w.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, p := range players {
		row[0], row[1], row[2] = p.ID, p.NaturalPosition, formatOptional(p.Overall)
		for i, name := range attributes {
			row[3+i] = "NA"
			if v, ok := p.Attributes[name]; ok {
				row[3+i] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func formatOptional(v *float64) string {
	if v == nil {
		return "NA"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Int("fallbacks", stats.Fallbacks),
		logger.Int("inconsistent", stats.Inconsistent),
		logger.Duration("duration", stats.Duration),
		logger.Float64("players_per_second", perSecond),
	)
}
