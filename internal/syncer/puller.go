package syncer

import (
	"context"
	"errors"
	"fmt"
	"reposync/internal/conflict"
	"reposync/internal/gitx"
	"reposync/internal/logger"
	"reposync/internal/model"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
)

type PullState string

const (
	StateStart           PullState = "start"
	StateConflictChecked PullState = "conflict-checked"
	StateResolved        PullState = "resolved"
	StateStashed         PullState = "stashed"
	StateClean           PullState = "clean"
	StatePulled          PullState = "pulled"
	StateDone            PullState = "done"
	StateFailed          PullState = "failed"
)

var ErrDetectionFailed = errors.New("conflict detection failed")

type Puller struct {
	runner     gitx.Runner
	detector   *conflict.Detector
	resolver   *conflict.Resolver
	failClosed bool
}

type PullerOption func(*Puller)

// WithFailClosedDetection makes a failed conflict check abort the pull
// instead of proceeding as if there were no conflicts.
func WithFailClosedDetection(enabled bool) PullerOption {
	return func(p *Puller) {
		p.failClosed = enabled
	}
}

func WithResolver(r *conflict.Resolver) PullerOption {
	return func(p *Puller) {
		p.resolver = r
	}
}

func NewPuller(runner gitx.Runner, opts ...PullerOption) *Puller {
	p := &Puller{
		runner:   runner,
		detector: conflict.NewDetector(),
		resolver: conflict.NewResolver(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

type pullRun struct {
	path  string
	state PullState
}

func (r *pullRun) to(state PullState) {
	logger.Log.Debug("pull state",
		zap.String("repo", r.path),
		zap.String("from", string(r.state)),
		zap.String("to", string(state)))
	r.state = state
}

func (r *pullRun) fail(result model.PullResult, err error) model.PullResult {
	r.to(StateFailed)
	result.Status = model.PullFailed
	result.Err = err
	logger.Log.Error("pull failed",
		zap.String("repo", r.path),
		zap.Error(err))
	return result
}

// Pull runs fetch, conflict check, resolve-or-stash and pull for one
// repository. Failures come back as a FAILED result.
func (p *Puller) Pull(ctx context.Context, path string) (result model.PullResult) {
	run := &pullRun{path: path, state: StateStart}
	defer func() {
		if rec := recover(); rec != nil {
			result = run.fail(model.PullResult{}, fmt.Errorf("panic during pull: %v", rec))
		}
	}()

	repo := gitx.Open(path, p.runner)

	before, err := repo.Head(ctx)
	if err != nil {
		return run.fail(result, err)
	}

	det := p.detector.Detect(ctx, repo)
	run.to(StateConflictChecked)

	if det.Err != nil && (!det.Dirty() || p.failClosed) {
		return run.fail(result, fmt.Errorf("%w: %w", ErrDetectionFailed, det.Err))
	}

	switch {
	case det.HasConflicts:
		run.to(StateResolved)
		result.Resolutions = p.resolver.Resolve(ctx, repo, det.Conflicts)
		if result.Resolved()+result.Skipped() == 0 {
			return run.fail(result, fmt.Errorf("all %d conflicting files failed to resolve", len(det.Conflicts)))
		}

	case det.Dirty():
		run.to(StateStashed)
		if err := p.stashAndPull(ctx, repo, before, &result); err != nil {
			return run.fail(result, err)
		}

	default:
		run.to(StateClean)
		if err := repo.Pull(ctx); err != nil {
			return run.fail(result, err)
		}
	}
	run.to(StatePulled)

	after, err := repo.Head(ctx)
	if err != nil {
		return run.fail(result, err)
	}

	result.Status = model.PullPulled
	if after == before {
		if len(result.Resolutions) == 0 {
			result.Status = model.PullUpToDate
		}
	} else {
		files, err := repo.DiffNames(ctx, before, after)
		if err != nil {
			logger.Log.Warn("failed to count pulled files",
				zap.String("repo", path),
				zap.Error(err))
		}
		result.Files = len(files)
	}

	run.to(StateDone)
	logger.Log.Info("pull finished",
		zap.String("repo", path),
		zap.String("status", string(result.Status)),
		zap.Int("files", result.Files),
		zap.Int("conflicts_resolved", result.Resolved()),
		zap.Int("conflicts_skipped", result.Skipped()),
		zap.Int("conflicts_failed", result.FailedFiles()))

	return result
}

// stashAndPull sets aside uncommitted changes, pulls, and re-applies them
// unless the pull touched any of the stashed paths.
func (p *Puller) stashAndPull(ctx context.Context, repo *gitx.Repo, before string, result *model.PullResult) error {
	created, err := repo.StashPush(ctx, "reposync: auto-stash "+time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to stash local changes: %w", err)
	}
	result.Stashed = created

	if err := repo.Pull(ctx); err != nil {
		if created {
			if popErr := repo.StashPop(ctx); popErr != nil {
				logger.Log.Warn("failed to restore stash after failed pull",
					zap.String("repo", repo.Path),
					zap.Error(popErr))
			}
		}
		return err
	}

	if !created {
		return nil
	}

	tracked, untracked, err := repo.StashFiles(ctx, "stash@{0}")
	if err != nil {
		logger.Log.Warn("stash kept, failed to inspect it",
			zap.String("repo", repo.Path),
			zap.Error(err))
		return nil
	}

	after, _ := repo.Head(ctx)
	pulled, err := repo.DiffNames(ctx, before, after)
	if err != nil {
		logger.Log.Warn("stash kept, failed to diff pull",
			zap.String("repo", repo.Path),
			zap.Error(err))
		return nil
	}

	overlap := mapset.NewThreadUnsafeSet(append(tracked, untracked...)...).
		Intersect(mapset.NewThreadUnsafeSet(pulled...))
	if overlap.Cardinality() > 0 {
		logger.Log.Warn("stash kept, pulled changes overlap stashed files",
			zap.String("repo", repo.Path),
			zap.Strings("paths", overlap.ToSlice()))
		return nil
	}

	if err := repo.StashPop(ctx); err != nil {
		logger.Log.Warn("stash kept, failed to re-apply it",
			zap.String("repo", repo.Path),
			zap.Error(err))
	}

	return nil
}
