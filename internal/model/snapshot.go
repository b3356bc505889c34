package model

import "time"

type DaemonSnapshot struct {
	Running   bool         `json:"running"`
	StartedAt time.Time    `json:"started_at"`
	LastRun   *time.Time   `json:"last_run"`
	NextRun   *time.Time   `json:"next_run"`
	Done      int          `json:"done"`
	Total     int          `json:"total"`
	Counters  SyncCounters `json:"counters"`
	LastError string       `json:"last_error,omitempty"`
}
