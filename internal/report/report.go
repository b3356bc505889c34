package report

import (
	"fmt"
	"reposync/internal/logger"
	"reposync/internal/model"

	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Reporter receives best-effort progress notifications. Implementations
// must not fail the caller.
type Reporter interface {
	CreateTask(name string)
	LogLine(level Level, msg string)
	ReportProgress(done, total int)
	Complete(summary model.SyncCounters)
	Fail(err error)
}

type Nop struct{}

func (Nop) CreateTask(string)           {}
func (Nop) LogLine(Level, string)       {}
func (Nop) ReportProgress(int, int)     {}
func (Nop) Complete(model.SyncCounters) {}
func (Nop) Fail(error)                  {}

// Log mirrors notifications into the process log.
type Log struct{}

func (Log) CreateTask(name string) {
	logger.Log.Info("task started", zap.String("task", name))
}

func (Log) LogLine(level Level, msg string) {
	switch level {
	case LevelError:
		logger.Log.Error(msg)
	case LevelWarn:
		logger.Log.Warn(msg)
	default:
		logger.Log.Info(msg)
	}
}

func (Log) ReportProgress(done, total int) {
	logger.Log.Debug("progress", zap.Int("done", done), zap.Int("total", total))
}

func (Log) Complete(s model.SyncCounters) {
	logger.Log.Info("sync complete", zap.String("summary", Summary(s)))
}

func (Log) Fail(err error) {
	logger.Log.Error("sync failed", zap.Error(err))
}

type Multi []Reporter

func (m Multi) CreateTask(name string) {
	for _, r := range m {
		r.CreateTask(name)
	}
}

func (m Multi) LogLine(level Level, msg string) {
	for _, r := range m {
		r.LogLine(level, msg)
	}
}

func (m Multi) ReportProgress(done, total int) {
	for _, r := range m {
		r.ReportProgress(done, total)
	}
}

func (m Multi) Complete(s model.SyncCounters) {
	for _, r := range m {
		r.Complete(s)
	}
}

func (m Multi) Fail(err error) {
	for _, r := range m {
		r.Fail(err)
	}
}

func Summary(s model.SyncCounters) string {
	return fmt.Sprintf("%d pulled, %d pushed, %d cloned, %d empty deleted, %d up to date, %d failed, %d conflicts resolved",
		s.Pulled, s.Pushed, s.Cloned, s.EmptyDeleted, s.UpToDate, s.Failed, s.ConflictsResolved)
}
