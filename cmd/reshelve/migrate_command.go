package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"reshelve/internal/migration"
	"reshelve/internal/report"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var flags planFlags
	var all, dryRun, noBackup bool
	var ignore []string

	cmd := &cobra.Command{
		Use:   "migrate [artist]",
		Short: "Validate, back up and execute a migration",
		Long: "Builds a plan, runs the pre-flight checks, snapshots the artist folder and\n" +
			"moves albums into the target layout. A failed run is rolled back from the\n" +
			"snapshot. Use --all to migrate every artist of the collection.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("give exactly one artist or --all")
			}
			params := executeParams{dryRun: dryRun, ignore: ignore}
			if noBackup {
				params.backup = new(bool)
			}

			if all {
				kind, err := migration.ParseKind(flags.kind)
				if err != nil {
					return err
				}
				return ctx.withBackend(cmd, func(b backend) error {
					results, err := b.MigrateAll(kind, params)
					if err != nil {
						return err
					}
					if flags.json {
						return writeJSON(cmd, results)
					}
					out := cmd.OutOrStdout()
					if err := report.WriteBatch(out, results, report.Options{Color: report.ShouldColorize(out)}); err != nil {
						return err
					}
					return batchError(results)
				})
			}

			req, err := flags.request(args[0])
			if err != nil {
				return err
			}
			params.request = req
			if !flags.json {
				progress := cmd.ErrOrStderr()
				params.progress = func(p migration.Progress) {
					fmt.Fprintln(progress, report.ProgressLine(p))
				}
			}
			return ctx.withBackend(cmd, func(b backend) error {
				res, err := b.Execute(params)
				if res == nil {
					return err
				}
				if flags.json {
					if jsonErr := writeJSON(cmd, res); jsonErr != nil {
						return jsonErr
					}
				} else {
					out := cmd.OutOrStdout()
					if writeErr := report.WriteResult(out, res, report.Options{Color: report.ShouldColorize(out)}); writeErr != nil {
						return writeErr
					}
				}
				if err != nil {
					return err
				}
				if res.Status == migration.ResultPartial {
					return fmt.Errorf("migration partially completed: %d of %d albums failed", res.AlbumsFailed, res.AlbumsTotal)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("kind")
	cmd.Flags().BoolVar(&all, "all", false, "Migrate every artist in the collection")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Simulate without touching the filesystem")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip the pre-migration snapshot (failures cannot be rolled back)")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "Downgrade checks to warnings: lock_detection, collisions")
	return cmd
}

func batchError(results []migration.BatchResult) error {
	failed := 0
	for _, r := range results {
		if r.Err != nil || (r.Result != nil && r.Result.Status != migration.ResultCompleted) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d artists did not migrate cleanly", failed, len(results))
	}
	return nil
}
