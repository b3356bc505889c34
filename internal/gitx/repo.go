package gitx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPushRejected     = errors.New("push rejected: remote has advanced")
	ErrNothingToCommit  = errors.New("nothing to commit")
	ErrNoUpstream       = errors.New("no upstream tracking branch")
	rejectionIndicators = []string{"[rejected]", "non-fast-forward", "fetch first"}
)

// Repo runs git commands against a single working tree.
type Repo struct {
	Path   string
	runner Runner
}

func Open(path string, runner Runner) *Repo {
	if runner == nil {
		runner = NewCLIRunner()
	}

	return &Repo{Path: path, runner: runner}
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	return r.runner.Run(ctx, r.Path, args...)
}

// IsRepository reports whether dir holds version-control metadata.
func IsRepository(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Status returns the paths with uncommitted changes, including untracked
// files. Renamed entries report their new path.
func (r *Repo) Status(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return nil, err
	}

	return parsePorcelain(out), nil
}

func parsePorcelain(out string) []string {
	var paths []string
	fields := strings.Split(out, "\x00")

	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if len(entry) < 4 {
			continue
		}

		code, path := entry[:2], entry[3:]
		if code == "!!" {
			continue
		}

		paths = append(paths, path)
		if code[0] == 'R' || code[0] == 'C' {
			i++ // skip the rename source
		}
	}

	return paths
}

func (r *Repo) Fetch(ctx context.Context) error {
	_, err := r.git(ctx, "fetch", "--quiet")
	return err
}

func (r *Repo) RevParse(ctx context.Context, rev string) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--verify", "--quiet", rev)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rev, err)
	}

	return strings.TrimSpace(out), nil
}

func (r *Repo) Head(ctx context.Context) (string, error) {
	return r.RevParse(ctx, "HEAD")
}

// Upstream returns the commit id of the tracking branch.
func (r *Repo) Upstream(ctx context.Context) (string, error) {
	if _, err := r.git(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}"); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoUpstream, err)
	}

	return r.RevParse(ctx, "@{u}")
}

// DiffNames lists paths that differ between revisions or within a range
// such as "HEAD...@{u}".
func (r *Repo) DiffNames(ctx context.Context, revs ...string) ([]string, error) {
	args := append([]string{"diff", "--name-only", "-z"}, revs...)
	out, err := r.git(ctx, args...)
	if err != nil {
		return nil, err
	}

	return splitNul(out), nil
}

// StashPush sets aside tracked and untracked changes. It reports false when
// there was nothing to stash.
func (r *Repo) StashPush(ctx context.Context, message string) (bool, error) {
	before, _ := r.RevParse(ctx, "refs/stash")

	if _, err := r.git(ctx, "stash", "push", "--include-untracked", "-m", message); err != nil {
		return false, err
	}

	after, _ := r.RevParse(ctx, "refs/stash")
	return after != "" && after != before, nil
}

func (r *Repo) StashPop(ctx context.Context) error {
	_, err := r.git(ctx, "stash", "pop")
	return err
}

// StashFiles lists the tracked and untracked paths captured by a stash entry.
func (r *Repo) StashFiles(ctx context.Context, ref string) (tracked, untracked []string, err error) {
	out, err := r.git(ctx, "diff", "--name-only", "-z", ref+"^1", ref)
	if err != nil {
		return nil, nil, err
	}
	tracked = splitNul(out)

	// ^3 only exists when untracked files were stashed.
	if out, err := r.git(ctx, "ls-tree", "-r", "-z", "--name-only", ref+"^3"); err == nil {
		untracked = splitNul(out)
	}

	return tracked, untracked, nil
}

func (r *Repo) StashDrop(ctx context.Context, ref string) error {
	_, err := r.git(ctx, "stash", "drop", "--quiet", ref)
	return err
}

// Unstage removes paths from the index without touching the working tree.
// Paths unknown to HEAD become untracked again.
func (r *Repo) Unstage(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	args := append([]string{"reset", "--quiet", "--"}, paths...)
	_, err := r.git(ctx, args...)
	return err
}

func (r *Repo) CheckoutFrom(ctx context.Context, ref string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	args := append([]string{"checkout", ref, "--"}, paths...)
	_, err := r.git(ctx, args...)
	return err
}

// Pull merges the upstream branch. On failure an in-progress merge is
// aborted so the tree is left as it was.
func (r *Repo) Pull(ctx context.Context) error {
	if _, err := r.git(ctx, "pull", "--no-rebase", "--no-edit", "--quiet"); err != nil {
		_, _ = r.git(ctx, "merge", "--abort")
		return err
	}

	return nil
}

func (r *Repo) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "-A", "--"}, paths...)
	_, err := r.git(ctx, args...)
	return err
}

func (r *Repo) AddAll(ctx context.Context) error {
	_, err := r.git(ctx, "add", "-A")
	return err
}

func (r *Repo) Commit(ctx context.Context, message string) error {
	_, err := r.git(ctx, "commit", "-m", message)
	if err != nil {
		if gitErr, ok := errors.AsType[*Error](err); ok && strings.Contains(gitErr.Output(), "nothing to commit") {
			return ErrNothingToCommit
		}
		return err
	}

	return nil
}

func (r *Repo) Push(ctx context.Context) error {
	_, err := r.git(ctx, "push", "--porcelain")
	if err == nil {
		return nil
	}

	if gitErr, ok := errors.AsType[*Error](err); ok {
		out := gitErr.Output()
		for _, indicator := range rejectionIndicators {
			if strings.Contains(out, indicator) {
				return fmt.Errorf("%w: %w", ErrPushRejected, err)
			}
		}
	}

	return err
}

func splitNul(out string) []string {
	var paths []string
	for _, p := range strings.Split(out, "\x00") {
		p = strings.TrimSpace(p)
		if p != "" {
			paths = append(paths, p)
		}
	}

	return paths
}
