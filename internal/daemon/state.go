package daemon

import (
	"reposync/internal/model"
	"sync"
	"time"
)

type State struct {
	mu        sync.RWMutex
	startedAt time.Time
	lastRun   *time.Time
	nextRun   *time.Time
	counters  model.SyncCounters
	lastError string
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) RecordRun(counters model.SyncCounters, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastRun = new(time.Now())
	s.counters = counters
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
}

func (s *State) SetNextRun(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if at.IsZero() {
		s.nextRun = nil
		return
	}
	s.nextRun = &at
}

func (s *State) Snapshot() model.DaemonSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.DaemonSnapshot{
		StartedAt: s.startedAt,
		LastRun:   s.lastRun,
		NextRun:   s.nextRun,
		Counters:  s.counters,
		LastError: s.lastError,
	}
}
