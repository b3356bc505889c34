package daemon

import (
	"context"
	"errors"
	"reposync/internal/logger"
	"reposync/internal/model"
	"reposync/internal/orchestrator"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SyncRunner is satisfied by *orchestrator.Orchestrator.
type SyncRunner interface {
	Run(ctx context.Context) (orchestrator.Result, error)
	Snapshot() (running bool, done, total int, counters model.SyncCounters)
}

// Manager serialises sync runs coming from the schedule, the watcher and
// the HTTP API. At most one run is in flight and at most one is queued.
type Manager struct {
	runner   SyncRunner
	interval time.Duration
	state    *State

	triggerCh chan string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewManager(runner SyncRunner, interval time.Duration) *Manager {
	return &Manager{
		runner:    runner,
		interval:  interval,
		state:     NewState(),
		triggerCh: make(chan string, 1),
	}
}

// Trigger queues a run. It reports false when one is already queued.
func (m *Manager) Trigger(reason string) bool {
	select {
	case m.triggerCh <- reason:
		return true
	default:
		return false
	}
}

// Start runs the loop until Stop. watchCh may be nil.
func (m *Manager) Start(ctx context.Context, watchCh <-chan struct{}) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(ctx, watchCh)
	}()
}

func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Manager) loop(ctx context.Context, watchCh <-chan struct{}) {
	var tick <-chan time.Time
	var timer *time.Timer
	if m.interval > 0 {
		timer = time.NewTimer(m.interval)
		defer timer.Stop()
		tick = timer.C
		m.state.SetNextRun(time.Now().Add(m.interval))
	}

	for {
		var reason string
		select {
		case <-ctx.Done():
			return
		case <-tick:
			reason = "schedule"
		case reason = <-m.triggerCh:
		case _, ok := <-watchCh:
			if !ok {
				watchCh = nil
				continue
			}
			reason = "watch"
		}

		m.run(ctx, reason)

		// Directories created by the run itself must not trigger another one.
		drain(watchCh)

		if timer != nil {
			timer.Stop()
			timer.Reset(m.interval)
			m.state.SetNextRun(time.Now().Add(m.interval))
		}
	}
}

func (m *Manager) run(ctx context.Context, reason string) {
	logger.Log.Info("sync run starting",
		zap.String("reason", reason))

	res, err := m.runner.Run(ctx)
	if errors.Is(err, orchestrator.ErrRunInProgress) {
		logger.Log.Warn("sync run skipped, another process holds the lock")
	} else if err != nil {
		logger.Log.Error("sync run failed",
			zap.String("reason", reason),
			zap.Error(err))
	}

	m.state.RecordRun(res.Counters, err)
}

func (m *Manager) Snapshot() model.DaemonSnapshot {
	snap := m.state.Snapshot()

	running, done, total, counters := m.runner.Snapshot()
	if running {
		snap.Running = true
		snap.Done = done
		snap.Total = total
		snap.Counters = counters
	}

	return snap
}

func drain(ch <-chan struct{}) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
