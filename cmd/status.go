package cmd

import (
	"fmt"
	"reposync/internal/report"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := daemonClient().Status(cmd.Context())
		if err != nil {
			return err
		}

		uptime := time.Since(snap.StartedAt).Round(time.Second)
		fmt.Printf("daemon up %s (since %s)\n", uptime, humanize.Time(snap.StartedAt))

		if snap.Running {
			fmt.Printf("sync running: %d/%d repositories\n", snap.Done, snap.Total)
		}

		if snap.LastRun != nil {
			fmt.Printf("last run:  %s, %s\n", humanize.Time(*snap.LastRun), report.Summary(snap.Counters))
		} else {
			fmt.Println("last run:  never")
		}

		if snap.NextRun != nil {
			fmt.Printf("next run:  %s\n", humanize.Time(*snap.NextRun))
		}

		if snap.LastError != "" {
			fmt.Printf("last error: %s\n", snap.LastError)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
