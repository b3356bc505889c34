package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reposync/internal/gitx"
	"reposync/internal/gitx/gittest"
	"reposync/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPullUpToDateIsIdempotent(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"notes.txt": "v1\n"})
	dir := remote.Clone(t, "A")
	puller := NewPuller(gitx.NewCLIRunner())

	for i := 0; i < 2; i++ {
		res := puller.Pull(context.Background(), dir)
		require.NoError(t, res.Err)
		assert.Equal(t, model.PullUpToDate, res.Status)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.local.*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestPullClean(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"notes.txt": "v1\n"})
	dir := remote.Clone(t, "A")
	remote.Publish(t, "two files", map[string]string{"notes.txt": "v2\n", "new.txt": "n\n"})

	res := NewPuller(gitx.NewCLIRunner()).Pull(context.Background(), dir)

	require.NoError(t, res.Err)
	assert.Equal(t, model.PullPulled, res.Status)
	assert.Equal(t, 2, res.Files)
	assert.False(t, res.Stashed)
	assert.Equal(t, "v2\n", gittest.Read(t, dir, "notes.txt"))
}

func TestPullStashesAndRestoresUnrelatedEdits(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"notes.txt": "v1\n", "mine.txt": "m\n"})
	dir := remote.Clone(t, "A")
	remote.Publish(t, "remote", map[string]string{"notes.txt": "v2\n"})
	gittest.Write(t, dir, "mine.txt", "local edit\n")

	res := NewPuller(gitx.NewCLIRunner()).Pull(context.Background(), dir)

	require.NoError(t, res.Err)
	assert.Equal(t, model.PullPulled, res.Status)
	assert.True(t, res.Stashed)
	assert.Empty(t, res.Resolutions)
	assert.Equal(t, "v2\n", gittest.Read(t, dir, "notes.txt"))
	assert.Equal(t, "local edit\n", gittest.Read(t, dir, "mine.txt"))
	assert.Empty(t, gittest.Git(t, dir, "stash", "list"))
}

func TestPullResolvesConflicts(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"notes.txt": "v1\n"})
	dir := remote.Clone(t, "A")

	gittest.Write(t, dir, "notes.txt", "local edit\n")
	gittest.Touch(t, dir, "notes.txt", time.Now().Add(-time.Hour))
	remote.Publish(t, "remote", map[string]string{"notes.txt": "remote edit\n"})

	res := NewPuller(gitx.NewCLIRunner()).Pull(context.Background(), dir)

	require.NoError(t, res.Err)
	assert.Equal(t, model.PullPulled, res.Status)
	require.Len(t, res.Resolutions, 1)
	assert.Equal(t, model.OutcomeRemoteNewer, res.Resolutions[0].Outcome)
	assert.Equal(t, 1, res.Resolved())
	assert.Equal(t, "remote edit\n", gittest.Read(t, dir, "notes.txt"))

	locals, err := filepath.Glob(filepath.Join(dir, "notes.txt.local.*"))
	require.NoError(t, err)
	require.Len(t, locals, 1)
	assert.Equal(t, "local edit\n", gittest.Read(t, dir, filepath.Base(locals[0])))
}

func TestPullWithoutUpstreamFails(t *testing.T) {
	gittest.RequireGit(t)
	dir := gittest.Init(t, filepath.Join(t.TempDir(), "solo"))
	gittest.Write(t, dir, "a.txt", "a\n")
	gittest.Commit(t, dir, "init")

	res := NewPuller(gitx.NewCLIRunner()).Pull(context.Background(), dir)

	assert.Equal(t, model.PullFailed, res.Status)
	assert.Error(t, res.Err)
	assert.False(t, res.OK())
}

type stubRunner struct {
	responses map[string]string
	failures  map[string]error
}

func (s *stubRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	if err, ok := s.failures[args[0]]; ok {
		return "", err
	}
	return s.responses[args[0]], nil
}

func TestPullFailClosedDetection(t *testing.T) {
	runner := &stubRunner{
		responses: map[string]string{"rev-parse": "abc\n", "status": " M notes.txt\x00"},
		failures:  map[string]error{"fetch": errors.New("offline")},
	}

	open := NewPuller(runner).Pull(context.Background(), "/repo")
	assert.NotErrorIs(t, open.Err, ErrDetectionFailed)

	closed := NewPuller(runner, WithFailClosedDetection(true)).Pull(context.Background(), "/repo")
	assert.Equal(t, model.PullFailed, closed.Status)
	assert.ErrorIs(t, closed.Err, ErrDetectionFailed)
}

type offlineRunner struct {
	gitx.Runner
}

func (r offlineRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	if args[0] == "pull" {
		return "", errors.New("could not resolve host")
	}
	return r.Runner.Run(ctx, dir, args...)
}

func TestPullFailsWhenEveryConflictFails(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"a.txt": "a\n", "b.txt": "b\n"})
	dir := remote.Clone(t, "A")
	remote.Publish(t, "remote", map[string]string{"a.txt": "remote a\n", "b.txt": "remote b\n"})
	gittest.Write(t, dir, "a.txt", "local a\n")
	gittest.Write(t, dir, "b.txt", "local b\n")

	res := NewPuller(offlineRunner{gitx.NewCLIRunner()}).Pull(context.Background(), dir)

	assert.Equal(t, model.PullFailed, res.Status)
	assert.Error(t, res.Err)
	require.Len(t, res.Resolutions, 2)
	assert.Equal(t, 2, res.FailedFiles())
	assert.Equal(t, "local a\n", gittest.Read(t, dir, "a.txt"))
	assert.Equal(t, "local b\n", gittest.Read(t, dir, "b.txt"))
}

func TestPullWithSkippedAndResolvedConflictsIsPulled(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"gone.txt": "g\n", "notes.txt": "v1\n"})
	dir := remote.Clone(t, "A")
	remote.Publish(t, "remote", map[string]string{"gone.txt": "remote g\n", "notes.txt": "remote edit\n"})

	require.NoError(t, os.Remove(filepath.Join(dir, "gone.txt")))
	gittest.Write(t, dir, "notes.txt", "local edit\n")
	gittest.Touch(t, dir, "notes.txt", time.Now().Add(-time.Hour))

	res := NewPuller(gitx.NewCLIRunner()).Pull(context.Background(), dir)

	require.NoError(t, res.Err)
	assert.Equal(t, model.PullPulled, res.Status)
	assert.Equal(t, 1, res.Resolved())
	assert.Equal(t, 1, res.Skipped())
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, "remote edit\n", gittest.Read(t, dir, "notes.txt"))
}
