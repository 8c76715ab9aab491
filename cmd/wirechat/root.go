package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/log"
)

// runtime is what every subcommand gets after the persistent pre-run.
type runtime struct {
	cfg        config.Config
	configPath string
	logger     *zerolog.Logger
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}

	cmd := &cobra.Command{
		Use:           "wirechat",
		Short:         "WireChat synchronizing chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			bootstrap := log.NewWithWriter(os.Stderr, level)

			path, _ := cmd.Flags().GetString("config")
			cfg, resolved, err := config.Load(bootstrap, path)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = level
			}

			rt.cfg = cfg
			rt.configPath = resolved
			rt.logger = log.NewWithWriter(os.Stderr, cfg.LogLevel)
			rt.logger.Debug().Str("config", resolved).Msg("configuration loaded")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().String("config", "", "path to the YAML config file (default ./wirechat.yaml)")
	cmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newSyncCmd(rt),
		newDevServerCmd(rt),
	)
	return cmd
}
