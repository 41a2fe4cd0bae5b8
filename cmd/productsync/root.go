package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/productsync/config"
	"github.com/c0deZ3R0/productsync/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "productsync",
		Short:         "Offline-first product catalogue sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			logging.Init(cfg.Log)
			a.cfg = cfg
			a.logger = logging.Default().Logger
			a.logger.Debug("Configuration loaded",
				slog.String("config_file", a.configPath),
				slog.String("remote", cfg.Remote.BaseURL),
				slog.String("store", cfg.Store.Path),
			)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (yaml, json or toml)")

	root.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newAddCmd(a),
		newSyncCmd(a),
		newStatusCmd(a),
		newMockRemoteCmd(a),
	)
	return root
}
