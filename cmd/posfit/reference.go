package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/posfit/internal/domain/reference"
)

func newReferenceCmd(c *cli) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Print the loaded reference table and its warnings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			table, report, err := loadReference(cmd.Context(), c.cfg.Reference)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == formatJSON {
				refs := make([]reference.PositionReference, 0, table.Len())
				for _, pos := range table.Positions() {
					ref, _ := table.Get(pos)
					refs = append(refs, *ref)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Positions []reference.PositionReference `json:"positions"`
					Warnings  []string                      `json:"warnings"`
				}{refs, report.Warnings})
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "POSITION\tFEATURES\tTOP FEATURE\tWEIGHT")
			for _, pos := range table.Positions() {
				ref, _ := table.Get(pos)
				top, weight := "-", 0.0
				if len(ref.Features) > 0 {
					top, weight = ref.Features[0].Name, ref.Features[0].Weight
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%.4g\n", pos, len(ref.Features), top, weight)
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(tw, "warning:\t%s\n", w)
			}
			return tw.Flush()
		},
	}
	addFormatFlag(cmd.Flags(), &format)
	return cmd
}
