package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/posfit/internal/adapters/source"
	service "github.com/okian/posfit/internal/app"
	"github.com/okian/posfit/internal/domain/position"
)

type scoreFlags struct {
	players string
	fromDB  bool
	format  string
	top     int
}

func newScoreCmd(c *cli) *cobra.Command {
	f := &scoreFlags{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one batch of players and store the results",
		Long: `Read every player from a CSV file or the players table, score each one
for all outfield positions and upsert the results into the configured store.

Examples:
  posfit score --players players.csv
  posfit score --from-db --format json
  posfit score --players players.csv --top 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd, c, f)
		},
	}

	cmd.Flags().StringVar(&f.players, "players", "", "Players CSV file")
	cmd.Flags().BoolVar(&f.fromDB, "from-db", false, "Read players from the players table of the configured database")
	addFormatFlag(cmd.Flags(), &f.format)
	cmd.Flags().IntVar(&f.top, "top", 0, "Also print the top N players per position")
	cmd.MarkFlagsMutuallyExclusive("players", "from-db")
	cmd.MarkFlagsOneRequired("players", "from-db")
	return cmd
}

func runScore(cmd *cobra.Command, c *cli, f *scoreFlags) error {
	if err := checkFormat(f.format); err != nil {
		return err
	}
	if f.top < 0 {
		return errors.New("--top must not be negative")
	}
	ctx := cmd.Context()

	comps, err := buildService(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer comps.close()

	var src source.Source
	if f.fromDB {
		if comps.db == nil {
			return fmt.Errorf("--from-db: %w", errNoDatabase)
		}
		src = source.NewSQLSource(comps.db, c.cfg.Database.QueryTimeout)
	} else {
		src = source.NewCSVSource(f.players)
	}

	report, err := comps.svc.RunBatch(ctx, src)
	if err != nil {
		return err
	}

	leaders := make(map[position.Position][]entryView)
	if f.top > 0 {
		for _, pos := range position.Outfield() {
			entries, err := comps.svc.TopN(ctx, pos, f.top)
			if err != nil {
				return err
			}
			for _, e := range entries {
				leaders[pos] = append(leaders[pos], entryView{Rank: e.Rank, PlayerID: e.PlayerID, Combo: e.Combo, Fit: e.Fit})
			}
		}
	}

	out := cmd.OutOrStdout()
	if f.format == formatJSON {
		return writeScoreJSON(out, report, leaders)
	}
	return writeScoreTable(out, report, leaders)
}

type entryView struct {
	Rank     int     `json:"rank"`
	PlayerID string  `json:"player_id"`
	Combo    float64 `json:"combo"`
	Fit      float64 `json:"fit"`
}

func writeScoreJSON(w io.Writer, report service.BatchReport, leaders map[position.Position][]entryView) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Report service.BatchReport               `json:"report"`
		Top    map[position.Position][]entryView `json:"top,omitempty"`
	}{report, leaders})
}

func writeScoreTable(w io.Writer, report service.BatchReport, leaders map[position.Position][]entryView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "RUN\t%s\n", report.RunID)
	fmt.Fprintf(tw, "READ\t%d\n", report.Read)
	fmt.Fprintf(tw, "DUPLICATES\t%d\n", report.Duplicates)
	fmt.Fprintf(tw, "SCORED\t%d\n", report.Scored)
	fmt.Fprintf(tw, "FALLBACKS\t%d\n", report.Fallbacks)
	fmt.Fprintf(tw, "FAILED\t%d\n", report.Failed)
	fmt.Fprintf(tw, "DURATION\t%s\n", report.Duration)

	for _, pos := range position.Outfield() {
		entries := leaders[pos]
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s\tPLAYER\tCOMBO\tFIT\n", pos)
		for _, e := range entries {
			fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.1f\n", e.Rank, e.PlayerID, e.Combo, e.Fit)
		}
	}
	return tw.Flush()
}
