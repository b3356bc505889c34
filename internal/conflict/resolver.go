package conflict

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reposync/internal/fingerprint"
	"reposync/internal/gitx"
	"reposync/internal/logger"
	"reposync/internal/model"
	"reposync/internal/util"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
)

const (
	MarkerLocal  = "local"
	MarkerRemote = "remote"

	stashRef = "stash@{0}"
)

// Resolver picks a winner for each conflicting file without merging. Every
// losing version is kept next to the file under a timestamped backup name.
type Resolver struct {
	now func() time.Time
}

func NewResolver() *Resolver {
	return &Resolver{now: time.Now}
}

// pass holds the per-repository state of one resolution batch: the stash
// and pull happen at most once no matter how many files conflict.
type pass struct {
	repo     *gitx.Repo
	stamp    string
	stashed  bool
	hasStash bool
	pulled   bool
	err      error
	backups  map[string]backup
	written  mapset.Set[string]
	conflict mapset.Set[string]
}

// backup is a local copy kept in memory so it survives the stash.
type backup struct {
	content []byte
	mode    os.FileMode
}

func (r *Resolver) Resolve(ctx context.Context, repo *gitx.Repo, conflicts []model.ConflictDescriptor) []model.Resolution {
	p := &pass{
		repo:     repo,
		stamp:    util.Stamp(r.now()),
		backups:  make(map[string]backup),
		written:  mapset.NewThreadUnsafeSet[string](),
		conflict: mapset.NewThreadUnsafeSet[string](),
	}
	for _, c := range conflicts {
		p.conflict.Add(c.File)
	}

	results := make([]model.Resolution, 0, len(conflicts))
	for _, c := range conflicts {
		res := p.resolve(ctx, c)
		logResolution(repo.Path, res)
		results = append(results, res)
	}

	if p.hasStash && p.restoreUnrelated(ctx) && allResolved(results) {
		p.dropStash(ctx)
	}

	return results
}

func allResolved(results []model.Resolution) bool {
	for _, res := range results {
		if !res.Resolved() {
			return false
		}
	}
	return true
}

func (p *pass) resolve(ctx context.Context, c model.ConflictDescriptor) model.Resolution {
	res := model.Resolution{File: c.File}
	if p.err != nil {
		return failed(res, p.err)
	}

	local, err := os.ReadFile(c.AbsPath)
	if err != nil {
		res.Outcome = model.OutcomeSkipped
		res.Err = fmt.Errorf("failed to read local copy: %w", err)
		return res
	}

	mode := util.FileMode(c.AbsPath)
	localBackup := util.BackupPath(c.AbsPath, MarkerLocal, p.stamp)
	if err := util.AtomicWrite(localBackup, bytes.NewReader(local), mode); err != nil {
		res.Outcome = model.OutcomeSkipped
		res.Err = fmt.Errorf("failed to back up local copy: %w", err)
		return res
	}
	p.backups[localBackup] = backup{content: local, mode: mode}
	p.track(localBackup)
	res.BackupPaths = append(res.BackupPaths, localBackup)

	if err := p.prepare(ctx); err != nil {
		p.rollback(ctx, err)
		res.BackupPaths = nil
		return failed(res, err)
	}

	remote := fingerprint.Of(c.AbsPath)

	switch {
	case c.LocalModTime > remote.ModTime:
		res.Outcome = model.OutcomeLocalNewer
		if remote.Present {
			path, err := p.backupRemote(c.AbsPath, mode)
			if err != nil {
				return failed(res, err)
			}
			res.BackupPaths = append(res.BackupPaths, path)
		}

		if err := util.AtomicWrite(c.AbsPath, bytes.NewReader(local), mode); err != nil {
			return failed(res, fmt.Errorf("failed to restore local copy: %w", err))
		}
		mtime := time.UnixMilli(c.LocalModTime)
		_ = os.Chtimes(c.AbsPath, mtime, mtime)

	case remote.Present && bytes.Equal(c.LocalDigest, remote.Digest):
		res.Outcome = model.OutcomeIdentical
		if err := util.RemoveIfExists(localBackup); err != nil {
			return failed(res, err)
		}
		delete(p.backups, localBackup)
		res.BackupPaths = nil

	default:
		res.Outcome = model.OutcomeRemoteNewer
		if remote.Present {
			path, err := p.backupRemote(c.AbsPath, mode)
			if err != nil {
				return failed(res, err)
			}
			res.BackupPaths = append(res.BackupPaths, path)
		}
	}

	if err := p.repo.Add(ctx, c.File); err != nil {
		return failed(res, fmt.Errorf("failed to stage %s: %w", c.File, err))
	}

	return res
}

// prepare stashes local modifications and pulls, once per pass. The stash
// sweeps up backups written so far, so they are written back afterwards.
func (p *pass) prepare(ctx context.Context) error {
	if !p.stashed {
		created, err := p.repo.StashPush(ctx, "reposync: conflict resolution "+p.stamp)
		if err != nil {
			return fmt.Errorf("failed to stash local changes: %w", err)
		}
		p.stashed = true
		p.hasStash = created

		for path, b := range p.backups {
			if _, err := os.Stat(path); err == nil {
				continue
			}
			if err := util.AtomicWrite(path, bytes.NewReader(b.content), b.mode); err != nil {
				return fmt.Errorf("failed to rewrite backup %s: %w", path, err)
			}
		}
	}

	if !p.pulled {
		if err := p.repo.Pull(ctx); err != nil {
			return fmt.Errorf("failed to pull: %w", err)
		}
		p.pulled = true
	}

	return nil
}

// rollback puts the working tree back the way it was before the pass when
// the stash or the pull fails. Every later file in the batch fails with the
// same error.
func (p *pass) rollback(ctx context.Context, cause error) {
	p.err = cause
	p.removeBackups()

	if p.hasStash {
		if err := p.repo.StashPop(ctx); err != nil {
			logger.Log.Warn("failed to restore stash after failed pull, local changes remain stashed",
				zap.String("repo", p.repo.Path),
				zap.Error(err))
		}
		p.hasStash = false
		// The pop brings back backups that were swept into the stash.
		p.removeBackups()
	}

	clear(p.backups)
}

func (p *pass) removeBackups() {
	for path := range p.backups {
		if err := util.RemoveIfExists(path); err != nil {
			logger.Log.Warn("failed to remove backup",
				zap.String("path", path),
				zap.Error(err))
		}
	}
}

func (p *pass) track(path string) {
	if rel, err := filepath.Rel(p.repo.Path, path); err == nil {
		p.written.Add(filepath.ToSlash(rel))
	}
}

func (p *pass) backupRemote(path string, mode os.FileMode) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read pulled copy: %w", err)
	}

	dst := util.BackupPath(path, MarkerRemote, p.stamp)
	if err := util.AtomicWrite(dst, bytes.NewReader(content), mode); err != nil {
		return "", fmt.Errorf("failed to back up pulled copy: %w", err)
	}
	p.track(dst)

	return dst, nil
}

// restoreUnrelated brings back stashed edits to files that were not in
// conflict, leaving them unstaged as they were. Backups written during the
// pass are never taken from the stash. It reports whether every path came
// back.
func (p *pass) restoreUnrelated(ctx context.Context) bool {
	tracked, untracked, err := p.repo.StashFiles(ctx, stashRef)
	if err != nil {
		logger.Log.Warn("failed to list stashed files",
			zap.String("repo", p.repo.Path),
			zap.Error(err))
		return false
	}

	skip := p.conflict.Union(p.written)
	ok := true
	var restored []string

	restore := func(ref string, paths []string) {
		for _, path := range paths {
			if skip.Contains(path) {
				continue
			}
			if err := p.repo.CheckoutFrom(ctx, ref, path); err != nil {
				ok = false
				logger.Log.Warn("failed to restore stashed file",
					zap.String("repo", p.repo.Path),
					zap.String("path", path),
					zap.Error(err))
				continue
			}
			restored = append(restored, path)
		}
	}

	restore(stashRef, tracked)
	restore(stashRef+"^3", untracked)

	if err := p.repo.Unstage(ctx, restored...); err != nil {
		logger.Log.Warn("failed to unstage restored files",
			zap.String("repo", p.repo.Path),
			zap.Error(err))
		return false
	}

	return ok
}

// dropStash discards the pass's stash once everything in it is accounted
// for: conflicting files live on in their backups, the rest is restored.
func (p *pass) dropStash(ctx context.Context) {
	if err := p.repo.StashDrop(ctx, stashRef); err != nil {
		logger.Log.Warn("failed to drop resolution stash",
			zap.String("repo", p.repo.Path),
			zap.Error(err))
	}
}

func failed(res model.Resolution, err error) model.Resolution {
	res.Outcome = model.OutcomeFailed
	res.Err = err
	return res
}

func logResolution(repo string, res model.Resolution) {
	fields := []zap.Field{
		zap.String("repo", repo),
		zap.String("path", res.File),
		zap.String("outcome", string(res.Outcome)),
		zap.Strings("backups", res.BackupPaths),
	}

	switch res.Outcome {
	case model.OutcomeSkipped, model.OutcomeFailed:
		logger.Log.Warn("conflict not resolved", append(fields, zap.Error(res.Err))...)
	default:
		logger.Log.Info("conflict resolved", fields...)
	}
}
