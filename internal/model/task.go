package model

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskRunning   TaskStatus = "RUNNING"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskFailed    TaskStatus = "FAILED"
)

// Task is a dashboard-side record of a reported sync run.
type Task struct {
	gorm.Model
	UUID    string     `gorm:"uniqueIndex;not null" json:"uuid"`
	Name    string     `gorm:"not null" json:"name"`
	Status  TaskStatus `gorm:"not null;default:'RUNNING'" json:"status"`
	Done    int        `json:"done"`
	Total   int        `json:"total"`
	Summary string     `json:"summary"`
	ErrMsg  string     `json:"error"`
	Logs    []TaskLog  `gorm:"constraint:OnDelete:CASCADE" json:"logs,omitempty"`
}

type TaskLog struct {
	gorm.Model
	TaskID   uint      `gorm:"index;not null" json:"-"`
	Level    string    `gorm:"not null" json:"level"`
	Message  string    `gorm:"not null" json:"message"`
	LoggedAt time.Time `json:"logged_at"`
}
