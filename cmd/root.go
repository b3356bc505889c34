package cmd

import (
	"os"
	"reposync/internal/config"
	"reposync/internal/daemon"
	"reposync/internal/db"
	"reposync/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	debug  bool
	dryRun bool
)

var rootCmd = &cobra.Command{
	Use:   "reposync",
	Short: "Keep local git working copies and a hosted account in sync",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger.Init(debug)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if dryRun {
			cfg.DryRun = true
		}

		clientCmds := map[string]bool{
			"status": true, "stop": true, "history": true,
			"install": true, "uninstall": true, "auth": true, "login": true, "check": true,
		}
		if !clientCmds[cmd.Name()] {
			if err := db.Init(cfg.DBPath); err != nil {
				return err
			}
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func daemonClient() *daemon.Client {
	return daemon.NewClient(cfg.DaemonPort)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log intended changes without touching anything")
}
