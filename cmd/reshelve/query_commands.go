package main

import (
	"github.com/spf13/cobra"

	"reshelve/internal/report"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "history [artist]",
		Short: "List recorded migrations, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artist := ""
			if len(args) == 1 {
				artist = args[0]
			}
			return ctx.withBackend(cmd, func(b backend) error {
				entries, err := b.History(artist, limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				return report.WriteHistory(out, entries, report.Options{Color: report.ShouldColorize(out)})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum entries to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate migration statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b backend) error {
				stats, err := b.Statistics()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				return report.WriteStatistics(out, stats, report.Options{Color: report.ShouldColorize(out)})
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "inspect <artist>",
		Short: "Show an artist's layout and compliance score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b backend) error {
				score, err := b.Inspect(args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, score)
				}
				out := cmd.OutOrStdout()
				return report.WriteScore(out, args[0], score, report.Options{Color: report.ShouldColorize(out)})
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}
