package model

import (
	"time"

	"gorm.io/gorm"
)

type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

type Run struct {
	gorm.Model
	Status       RunStatus `gorm:"not null;default:'RUNNING'"`
	DryRun       bool
	StartedAt    time.Time `gorm:"not null"`
	FinishedAt   *time.Time
	ErrMsg       string
	SyncCounters `gorm:"embedded"`
	Events       []RepoEvent `gorm:"constraint:OnDelete:CASCADE"`
}

type RepoEvent struct {
	gorm.Model
	RunID  uint       `gorm:"index;not null"`
	Repo   string     `gorm:"not null"`
	Action RepoAction `gorm:"not null"`
	Status RepoStatus `gorm:"not null"`
	Detail string
	ErrMsg string
}

func NewRepoEvent(runID uint, r RepoReport) RepoEvent {
	ev := RepoEvent{
		RunID:  runID,
		Repo:   r.Name,
		Action: r.Action,
		Status: r.Status,
		Detail: r.Detail,
	}
	if r.Err != nil {
		ev.ErrMsg = r.Err.Error()
	}

	return ev
}
