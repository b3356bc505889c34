package cmd

import (
	"reposync/internal/report"
)

// newReporter logs every notification and forwards it to the dashboard when
// one is configured.
func newReporter() report.Reporter {
	if cfg.DashboardURL == "" {
		return report.Log{}
	}
	return report.Multi{report.Log{}, report.NewHTTP(cfg.DashboardURL)}
}
