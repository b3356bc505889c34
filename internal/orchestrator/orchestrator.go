package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reposync/internal/gitx"
	"reposync/internal/inventory"
	"reposync/internal/logger"
	"reposync/internal/model"
	"reposync/internal/report"
	"reposync/internal/syncer"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRunInProgress = errors.New("another sync run holds the lock")
	ErrNoCloneRoot   = errors.New("no search directory to clone into")
)

type RemoteAccount interface {
	Owner() string
	List(ctx context.Context) ([]model.RemoteRepo, error)
	Delete(ctx context.Context, owner, name string) error
}

type LocalScanner interface {
	Scan(roots []string) (inventory.Local, error)
}

// Recorder persists run outcomes. All methods are best effort.
type Recorder interface {
	Begin(dryRun bool, startedAt time.Time) (uint, error)
	Record(runID uint, r model.RepoReport) error
	Finish(runID uint, counters model.SyncCounters, runErr error) error
}

type Options struct {
	SearchDirs  []string
	DeleteEmpty bool
	DryRun      bool
	Workers     int
	LockPath    string
}

type Deps struct {
	Remote   RemoteAccount
	Scanner  LocalScanner
	Puller   syncer.RepoPuller
	Pusher   syncer.RepoPusher
	Clone    func(ctx context.Context, url, dir string) error
	Inspect  func(dir string) (gitx.Summary, error)
	Reporter report.Reporter
	Recorder Recorder
}

type Result struct {
	Counters   model.SyncCounters
	Reports    []model.RepoReport
	StartedAt  time.Time
	FinishedAt time.Time
}

type Orchestrator struct {
	opts Options
	deps Deps

	mu      sync.Mutex
	current *tally
}

func New(opts Options, deps Deps) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if deps.Reporter == nil {
		deps.Reporter = report.Nop{}
	}
	if deps.Inspect == nil {
		deps.Inspect = gitx.Inspect
	}

	return &Orchestrator{opts: opts, deps: deps}
}

// Snapshot returns the progress of the run in flight, if any.
func (o *Orchestrator) Snapshot() (running bool, done, total int, counters model.SyncCounters) {
	o.mu.Lock()
	t := o.current
	o.mu.Unlock()

	if t == nil {
		return false, 0, 0, model.SyncCounters{}
	}

	done, total, counters = t.progress()
	return true, done, total, counters
}

// Run performs one full reconciliation: remote inventory, local inventory,
// pull-or-clone for every remote repository, then retire-or-push for every
// local repository without a remote counterpart.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	res := Result{StartedAt: time.Now()}
	rep := o.deps.Reporter
	rep.CreateTask("repository sync")

	unlock, err := o.lock()
	if err != nil {
		rep.Fail(err)
		return res, err
	}
	defer unlock()

	runID := o.begin(res.StartedAt)

	records, err := o.inventory(ctx)
	if err != nil {
		o.finish(runID, model.SyncCounters{}, err)
		rep.Fail(err)
		return res, err
	}

	var remotes, locals []model.RepositoryRecord
	for _, r := range records {
		switch {
		case r.Remote != nil:
			remotes = append(remotes, r)
		case r.PushCandidate():
			locals = append(locals, r)
		}
	}

	t := newTally(len(remotes)+len(locals), rep, o.deps.Recorder, runID)
	o.mu.Lock()
	o.current = t
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.current = nil
		o.mu.Unlock()
	}()

	rep.LogLine(report.LevelInfo, fmt.Sprintf("%d remote and %d local-only repositories", len(remotes), len(locals)))

	o.each(ctx, remotes, func(ctx context.Context, r model.RepositoryRecord) model.RepoReport {
		if r.Paired() {
			return o.pull(ctx, r, t)
		}
		return o.clone(ctx, r, t)
	}, t)

	o.each(ctx, locals, func(ctx context.Context, r model.RepositoryRecord) model.RepoReport {
		return o.retireOrPush(ctx, r, t)
	}, t)

	res.Counters, res.Reports = t.result()
	res.FinishedAt = time.Now()

	o.finish(runID, res.Counters, nil)
	rep.Complete(res.Counters)
	logger.Log.Info("sync run finished",
		zap.String("summary", report.Summary(res.Counters)),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))

	return res, nil
}

func (o *Orchestrator) lock() (func(), error) {
	if o.opts.LockPath == "" {
		return func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(o.opts.LockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock dir: %w", err)
	}

	fl := flock.New(o.opts.LockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrRunInProgress
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			logger.Log.Warn("failed to release lock", zap.Error(err))
		}
	}, nil
}

func (o *Orchestrator) inventory(ctx context.Context) ([]model.RepositoryRecord, error) {
	remote, err := o.deps.Remote.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote repositories: %w", err)
	}

	local, err := o.deps.Scanner.Scan(o.opts.SearchDirs)
	if err != nil {
		return nil, fmt.Errorf("failed to scan local repositories: %w", err)
	}

	return inventory.Merge(local, remote), nil
}

// each handles records with at most Workers goroutines. One repository is
// only ever handled by one goroutine, start to finish. Cancelling ctx skips
// the repositories not yet started; the ones in flight run to completion so
// no git command is killed halfway through.
func (o *Orchestrator) each(ctx context.Context, records []model.RepositoryRecord, handle func(context.Context, model.RepositoryRecord) model.RepoReport, t *tally) {
	repoCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)

	for _, r := range records {
		g.Go(func() error {
			if ctx.Err() != nil {
				t.add(model.RepoReport{Name: r.Name, Action: model.ActionSkip, Status: model.RepoSkipped, Detail: "cancelled"}, nil)
				return nil
			}
			t.done(handle(repoCtx, r))
			return nil
		})
	}

	_ = g.Wait()
}

func (o *Orchestrator) pull(ctx context.Context, r model.RepositoryRecord, t *tally) model.RepoReport {
	rep := model.RepoReport{Name: r.Name, Action: model.ActionPull}
	if o.opts.DryRun {
		return intent(rep, "would pull "+r.LocalPath)
	}

	res := o.deps.Puller.Pull(ctx, r.LocalPath)
	switch res.Status {
	case model.PullPulled:
		t.count(func(c *model.SyncCounters) {
			c.Pulled++
			c.ConflictsResolved += res.Resolved()
		})
		rep.Status = model.RepoSuccess
		rep.Detail = fmt.Sprintf("%d files pulled", res.Files)
		if len(res.Resolutions) > 0 {
			rep.Detail += fmt.Sprintf(", %d conflicts resolved, %d skipped, %d failed",
				res.Resolved(), res.Skipped(), res.FailedFiles())
		}
	case model.PullUpToDate:
		t.count(func(c *model.SyncCounters) { c.UpToDate++ })
		rep.Status = model.RepoUpToDate
	case model.PullFailed:
		t.count(func(c *model.SyncCounters) { c.Failed++ })
		rep.Status = model.RepoFailed
		rep.Err = res.Err
	default:
		t.count(func(c *model.SyncCounters) { c.Failed++ })
		rep.Status = model.RepoFailed
		rep.Err = fmt.Errorf("unknown pull status %q", res.Status)
	}

	return rep
}

func (o *Orchestrator) clone(ctx context.Context, r model.RepositoryRecord, t *tally) model.RepoReport {
	rep := model.RepoReport{Name: r.Name, Action: model.ActionClone}
	if len(o.opts.SearchDirs) == 0 {
		t.count(func(c *model.SyncCounters) { c.Failed++ })
		rep.Status = model.RepoFailed
		rep.Err = ErrNoCloneRoot
		return rep
	}
	dest := filepath.Join(o.opts.SearchDirs[0], r.Name)

	if o.opts.DryRun {
		return intent(rep, "would clone into "+dest)
	}

	if _, err := os.Stat(dest); err == nil {
		t.count(func(c *model.SyncCounters) { c.Failed++ })
		rep.Status = model.RepoFailed
		rep.Err = fmt.Errorf("clone destination %s exists and is not a repository", dest)
		return rep
	}

	if err := o.deps.Clone(ctx, r.Remote.CloneURL, dest); err != nil {
		t.count(func(c *model.SyncCounters) { c.Failed++ })
		rep.Status = model.RepoFailed
		rep.Err = err
		return rep
	}

	t.count(func(c *model.SyncCounters) { c.Cloned++ })
	rep.Status = model.RepoSuccess
	rep.Detail = "cloned into " + dest
	return rep
}

func (o *Orchestrator) retireOrPush(ctx context.Context, r model.RepositoryRecord, t *tally) model.RepoReport {
	summary, err := o.deps.Inspect(r.LocalPath)
	if err != nil {
		logger.Log.Warn("failed to inspect repository, treating as non-empty",
			zap.String("repo", r.LocalPath),
			zap.Error(err))
	}

	if err == nil && summary.IsEmpty() && o.opts.DeleteEmpty {
		return o.retire(ctx, r, t)
	}

	return o.push(ctx, r, t)
}

func (o *Orchestrator) retire(ctx context.Context, r model.RepositoryRecord, t *tally) model.RepoReport {
	rep := model.RepoReport{Name: r.Name, Action: model.ActionRetire}
	owner := o.deps.Remote.Owner()

	if o.opts.DryRun {
		return intent(rep, fmt.Sprintf("would delete empty repository %s/%s", owner, r.Name))
	}

	if err := o.deps.Remote.Delete(ctx, owner, r.Name); err != nil {
		t.count(func(c *model.SyncCounters) { c.Failed++ })
		rep.Status = model.RepoFailed
		rep.Err = err
		return rep
	}

	t.count(func(c *model.SyncCounters) { c.EmptyDeleted++ })
	rep.Status = model.RepoSuccess
	rep.Detail = fmt.Sprintf("deleted empty repository %s/%s", owner, r.Name)
	return rep
}

func (o *Orchestrator) push(ctx context.Context, r model.RepositoryRecord, t *tally) model.RepoReport {
	rep := model.RepoReport{Name: r.Name, Action: model.ActionPush}
	if o.opts.DryRun {
		return intent(rep, "would push "+r.LocalPath)
	}

	res := o.deps.Pusher.Push(ctx, r.LocalPath)
	resolved := 0
	if res.Pull != nil {
		resolved = res.Pull.Resolved()
	}

	switch res.Status {
	case model.PushPushed:
		t.count(func(c *model.SyncCounters) {
			c.Pushed++
			c.ConflictsResolved += resolved
		})
		rep.Status = model.RepoSuccess
		if res.Retried {
			rep.Detail = "pushed after retry"
		}
	case model.PushNoChanges:
		t.count(func(c *model.SyncCounters) { c.UpToDate++ })
		rep.Status = model.RepoUpToDate
		rep.Detail = "no changes"
	case model.PushFailed:
		t.count(func(c *model.SyncCounters) { c.Failed++ })
		rep.Status = model.RepoFailed
		rep.Err = res.Err
	default:
		t.count(func(c *model.SyncCounters) { c.Failed++ })
		rep.Status = model.RepoFailed
		rep.Err = fmt.Errorf("unknown push status %q", res.Status)
	}

	return rep
}

func intent(rep model.RepoReport, what string) model.RepoReport {
	logger.Log.Info("dry run", zap.String("repo", rep.Name), zap.String("intent", what))
	rep.Status = model.RepoSkipped
	rep.Detail = "[dry run] " + what
	return rep
}

func (o *Orchestrator) begin(startedAt time.Time) uint {
	if o.deps.Recorder == nil {
		return 0
	}

	id, err := o.deps.Recorder.Begin(o.opts.DryRun, startedAt)
	if err != nil {
		logger.Log.Warn("failed to record run start", zap.Error(err))
	}
	return id
}

func (o *Orchestrator) finish(runID uint, counters model.SyncCounters, runErr error) {
	if o.deps.Recorder == nil || runID == 0 {
		return
	}

	if err := o.deps.Recorder.Finish(runID, counters, runErr); err != nil {
		logger.Log.Warn("failed to record run result", zap.Error(err))
	}
}
