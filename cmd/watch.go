package cmd

import (
	"context"
	"os"
	"os/signal"
	"reposync/internal/daemon"
	"reposync/internal/db"
	"reposync/internal/logger"
	"reposync/internal/orchestrator"
	"reposync/internal/repository"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const watchDebounce = 5 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start the daemon: scheduled runs, directory watching and the HTTP API",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	runRepo := repository.NewRunRepository(db.DB)
	o, err := orchestrator.FromConfig(cfg, newReporter(), runRepo)
	if err != nil {
		return err
	}

	w, err := daemon.NewWatcher(cfg.Exclude, 64)
	if err != nil {
		return err
	}
	if err := w.Watch(cfg.SearchDirs); err != nil {
		return err
	}
	defer w.Stop()

	manager := daemon.NewManager(o, cfg.Interval)
	manager.Start(context.Background(), daemon.Debounce(w.Events(), watchDebounce))
	manager.Trigger("startup")

	srv := daemon.NewServer(manager, runRepo, repository.NewTaskRepository(db.DB), cfg.DaemonPort)
	srv.Start()

	logger.Log.Info("reposync daemon started",
		zap.Strings("search_dirs", cfg.SearchDirs),
		zap.Duration("interval", cfg.Interval),
		zap.Int("port", cfg.DaemonPort))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info("shutting down",
			zap.String("signal", sig.String()))
	case <-srv.StopCh():
		logger.Log.Info("stop requested via API")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
