package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reshelve/internal/ipc"
	"reshelve/internal/migration"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the migration engine over the IPC socket until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.remote() {
				return fmt.Errorf("serve listens on paths.socket_path; --socket is for clients")
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			socket := ctx.socketPath()
			return ctx.withEngine(func(engine *migration.Engine) error {
				srv, err := ipc.NewServer(cmd.Context(), socket, engine, logger)
				if err != nil {
					return err
				}
				defer srv.Close()
				srv.Serve()
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", socket)
				<-cmd.Context().Done()
				return nil
			})
		},
	}
}
