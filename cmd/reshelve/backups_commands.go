package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reshelve/internal/migration"
	"reshelve/internal/report"
)

func newBackupsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Inspect and clean up retained artist backups",
	}
	cmd.AddCommand(newBackupsListCommand(ctx))
	cmd.AddCommand(newBackupsPruneCommand(ctx))
	cmd.AddCommand(newBackupsDiscardCommand(ctx))
	return cmd
}

func newBackupsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List retained backups, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *migration.Engine) error {
				backups, err := engine.ListBackups()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, backups)
				}
				out := cmd.OutOrStdout()
				return report.WriteBackups(out, backups, report.Options{Color: report.ShouldColorize(out)})
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newBackupsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete backups older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *migration.Engine) error {
				result, err := engine.PruneBackups(cmd.Context(), olderThan)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, path := range result.Removed {
					fmt.Fprintf(out, "Removed %s\n", path)
				}
				fmt.Fprintf(out, "%d backup(s) removed\n", len(result.Removed))
				if len(result.Errors) > 0 {
					for _, e := range result.Errors {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", e.Path, e.Error)
					}
					return fmt.Errorf("%d backup(s) could not be removed", len(result.Errors))
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Minimum backup age to delete")
	return cmd
}

func newBackupsDiscardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <backup-path>",
		Short: "Delete one retained backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *migration.Engine) error {
				if err := engine.DiscardBackup(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}
