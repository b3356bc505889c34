package conflict

import (
	"context"
	"fmt"
	"path/filepath"
	"reposync/internal/fingerprint"
	"reposync/internal/gitx"
	"reposync/internal/logger"
	"reposync/internal/model"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
)

type Detection struct {
	HasConflicts bool
	Conflicts    []model.ConflictDescriptor
	// Changed holds every locally modified path, conflicting or not.
	Changed []string
	// Err is set when fetch or diff failed and the result fell open to
	// "no conflicts".
	Err error
}

func (d Detection) Dirty() bool {
	return len(d.Changed) > 0
}

type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// Detect reports files modified both in the working tree and on the
// upstream branch since the merge base. It never changes the working tree.
func (d *Detector) Detect(ctx context.Context, repo *gitx.Repo) Detection {
	changed, err := repo.Status(ctx)
	if err != nil {
		return Detection{Err: fmt.Errorf("failed to read status: %w", err)}
	}

	if len(changed) == 0 {
		return Detection{}
	}

	det := Detection{Changed: changed}

	if err := repo.Fetch(ctx); err != nil {
		return det.failOpen(repo, fmt.Errorf("failed to fetch: %w", err))
	}

	remoteChanged, err := repo.DiffNames(ctx, "HEAD...@{u}")
	if err != nil {
		return det.failOpen(repo, fmt.Errorf("failed to diff upstream: %w", err))
	}

	overlap := mapset.NewThreadUnsafeSet(changed...).
		Intersect(mapset.NewThreadUnsafeSet(remoteChanged...))

	for _, file := range changed {
		if !overlap.Contains(file) {
			continue
		}

		abs := filepath.Join(repo.Path, filepath.FromSlash(file))
		fp := fingerprint.Of(abs)
		det.Conflicts = append(det.Conflicts, model.ConflictDescriptor{
			File:         file,
			AbsPath:      abs,
			LocalModTime: fp.ModTime,
			LocalDigest:  fp.Digest,
		})
	}

	det.HasConflicts = len(det.Conflicts) > 0
	if det.HasConflicts {
		logger.Log.Warn("conflicts detected",
			zap.String("repo", repo.Path),
			zap.Int("count", len(det.Conflicts)))
	}

	return det
}

func (d Detection) failOpen(repo *gitx.Repo, err error) Detection {
	logger.Log.Warn("conflict detection failed, assuming no conflicts",
		zap.String("repo", repo.Path),
		zap.Error(err))

	d.Err = err
	return d
}
