package syncer

import (
	"context"
	"errors"
	"fmt"
	"reposync/internal/gitx"
	"reposync/internal/logger"
	"reposync/internal/model"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPullBeforePush  = errors.New("pull failed before push")
	ErrPullBeforeRetry = errors.New("pull failed before push retry")
)

type Pusher struct {
	runner  gitx.Runner
	puller  RepoPuller
	message func(time.Time) string
	now     func() time.Time
}

func NewPusher(runner gitx.Runner, puller RepoPuller, message func(time.Time) string) *Pusher {
	return &Pusher{
		runner:  runner,
		puller:  puller,
		message: message,
		now:     time.Now,
	}
}

// Push commits and publishes local changes. A rejected push is retried
// exactly once after pulling again.
func (p *Pusher) Push(ctx context.Context, path string) (result model.PushResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = p.fail(path, result, fmt.Errorf("panic during push: %v", rec))
		}
	}()

	repo := gitx.Open(path, p.runner)

	changed, err := repo.Status(ctx)
	if err != nil {
		return p.fail(path, result, fmt.Errorf("failed to read status: %w", err))
	}
	if len(changed) == 0 {
		result.Status = model.PushNoChanges
		return result
	}

	if err := repo.Fetch(ctx); err != nil {
		return p.fail(path, result, fmt.Errorf("failed to fetch: %w", err))
	}

	head, err := repo.Head(ctx)
	if err != nil {
		return p.fail(path, result, err)
	}

	upstream, err := repo.Upstream(ctx)
	switch {
	case errors.Is(err, gitx.ErrNoUpstream):
		logger.Log.Warn("no upstream, pushing without pre-pull",
			zap.String("repo", path))
	case err != nil:
		return p.fail(path, result, err)
	case upstream != head:
		pull := p.puller.Pull(ctx, path)
		result.Pull = &pull
		if !pull.OK() {
			return p.fail(path, result, fmt.Errorf("%w: %w", ErrPullBeforePush, pull.Err))
		}
	}

	if err := repo.AddAll(ctx); err != nil {
		return p.fail(path, result, fmt.Errorf("failed to stage changes: %w", err))
	}

	if err := repo.Commit(ctx, p.message(p.now())); err != nil && !errors.Is(err, gitx.ErrNothingToCommit) {
		return p.fail(path, result, fmt.Errorf("failed to commit: %w", err))
	}

	err = repo.Push(ctx)
	if errors.Is(err, gitx.ErrPushRejected) {
		logger.Log.Warn("push rejected, pulling and retrying once",
			zap.String("repo", path))

		result.Retried = true
		pull := p.puller.Pull(ctx, path)
		result.Pull = &pull
		if !pull.OK() {
			return p.fail(path, result, fmt.Errorf("%w: %w", ErrPullBeforeRetry, pull.Err))
		}

		err = repo.Push(ctx)
	}
	if err != nil {
		return p.fail(path, result, fmt.Errorf("failed to push: %w", err))
	}

	result.Status = model.PushPushed
	logger.Log.Info("pushed",
		zap.String("repo", path),
		zap.Int("files", len(changed)),
		zap.Bool("retried", result.Retried))

	return result
}

func (p *Pusher) fail(path string, result model.PushResult, err error) model.PushResult {
	result.Status = model.PushFailed
	result.Err = err
	logger.Log.Error("push failed",
		zap.String("repo", path),
		zap.Error(err))
	return result
}
