package cmd

import (
	"fmt"
	"reposync/internal/model"
	"reposync/internal/report"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyN int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := daemonClient().History(cmd.Context(), historyN)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, r := range runs {
			status := "✓"
			switch r.Status {
			case model.RunFailed:
				status = "✗"
			case model.RunRunning:
				status = "…"
			}

			mode := ""
			if r.DryRun {
				mode = " (dry run)"
			}

			fmt.Printf("%s [%s] %s%s\n",
				status,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				report.Summary(r.SyncCounters),
				mode,
			)
			if r.ErrMsg != "" {
				fmt.Printf("    %s\n", r.ErrMsg)
			}
			if r.FinishedAt != nil {
				fmt.Printf("    took %s\n", humanize.RelTime(r.StartedAt, *r.FinishedAt, "", ""))
			}
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
