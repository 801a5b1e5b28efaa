package main

import (
	"github.com/spf13/cobra"
)

func newStatsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print availability statistics from the history store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := collectStats(ctx, s)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), report, a.cfg.Location)
			return nil
		},
	}
}
