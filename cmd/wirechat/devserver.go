package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
)

func newDevServerCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run the local development backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := rt.cfg.DevServer
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}
			if db, _ := cmd.Flags().GetString("db"); db != "" {
				cfg.DatabasePath = db
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, rt.logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				return err
			}
			rt.logger.Info().Msg("devserver stopped")
			return nil
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides devserver.addr)")
	cmd.Flags().String("db", "", "SQLite database path (overrides devserver.database_path)")
	return cmd
}
