package orchestrator

import (
	"fmt"
	"reposync/internal/logger"
	"reposync/internal/model"
	"reposync/internal/report"
	"sync"

	"go.uber.org/zap"
)

// tally owns the counters and progress of a single run.
type tally struct {
	// emit serialises reporter calls so progress never goes backwards.
	emit     sync.Mutex
	mu       sync.Mutex
	counters model.SyncCounters
	reports  []model.RepoReport
	finished int
	total    int

	reporter report.Reporter
	recorder Recorder
	runID    uint
}

func newTally(total int, reporter report.Reporter, recorder Recorder, runID uint) *tally {
	return &tally{total: total, reporter: reporter, recorder: recorder, runID: runID}
}

func (t *tally) count(update func(*model.SyncCounters)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	update(&t.counters)
}

func (t *tally) done(r model.RepoReport) {
	t.add(r, t.reporter)
}

func (t *tally) add(r model.RepoReport, rep report.Reporter) {
	t.emit.Lock()
	t.mu.Lock()
	t.reports = append(t.reports, r)
	t.finished++
	finished, total := t.finished, t.total
	t.mu.Unlock()

	if rep != nil {
		rep.LogLine(levelFor(r), line(r))
		rep.ReportProgress(finished, total)
	}
	t.emit.Unlock()

	if t.recorder != nil && t.runID != 0 {
		if err := t.recorder.Record(t.runID, r); err != nil {
			logger.Log.Warn("failed to record repository event",
				zap.String("repo", r.Name),
				zap.Error(err))
		}
	}
}

func (t *tally) progress() (int, int, model.SyncCounters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished, t.total, t.counters
}

func (t *tally) result() (model.SyncCounters, []model.RepoReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters, append([]model.RepoReport(nil), t.reports...)
}

func levelFor(r model.RepoReport) report.Level {
	switch r.Status {
	case model.RepoFailed:
		return report.LevelError
	case model.RepoSuccess:
		return report.LevelSuccess
	default:
		return report.LevelInfo
	}
}

func line(r model.RepoReport) string {
	s := fmt.Sprintf("%s %s: %s", r.Action, r.Name, r.Status)
	if r.Detail != "" {
		s += " (" + r.Detail + ")"
	}
	if r.Err != nil {
		s += ": " + r.Err.Error()
	}
	return s
}
