package cmd

import (
	"fmt"
	"reposync/internal/db"
	"reposync/internal/logger"
	"reposync/internal/model"
	"reposync/internal/orchestrator"
	"reposync/internal/report"
	"reposync/internal/repository"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncWorkers int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full reconciliation and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		if syncWorkers > 0 {
			cfg.Workers = syncWorkers
		}

		o, err := orchestrator.FromConfig(cfg, newReporter(), repository.NewRunRepository(db.DB))
		if err != nil {
			return err
		}

		logger.Log.Info("starting sync",
			zap.Strings("search_dirs", cfg.SearchDirs),
			zap.Bool("dry_run", cfg.DryRun),
			zap.Int("workers", cfg.Workers))

		res, err := o.Run(cmd.Context())
		if err != nil {
			return err
		}

		for _, r := range res.Reports {
			if r.Status != model.RepoFailed {
				continue
			}
			fmt.Printf("✗ %-7s %s: %v\n", r.Action, r.Name, r.Err)
		}

		fmt.Printf("done in %s: %s\n",
			humanize.RelTime(res.StartedAt, res.FinishedAt, "", ""),
			report.Summary(res.Counters))
		return nil
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncWorkers, "workers", 0, "number of repositories processed concurrently")
	rootCmd.AddCommand(syncCmd)
}
