package syncer

import (
	"context"
	"reposync/internal/gitx"
	"reposync/internal/gitx/gittest"
	"reposync/internal/model"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(time.Time) string { return "Auto-sync: test" }

// racingRunner publishes a commit from another clone right before selected
// push attempts, so the remote advances between fetch and push.
type racingRunner struct {
	inner  gitx.Runner
	t      *testing.T
	remote *gittest.Remote
	raceOn map[int]bool
	pushes int
}

func (r *racingRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	if args[0] == "push" {
		r.pushes++
		if r.raceOn[r.pushes] {
			r.remote.Publish(r.t, "race", map[string]string{"race" + strconv.Itoa(r.pushes) + ".txt": "x\n"})
		}
	}
	return r.inner.Run(ctx, dir, args...)
}

func newPusher(runner gitx.Runner) *Pusher {
	return NewPusher(runner, NewPuller(runner), message)
}

func TestPushNoChanges(t *testing.T) {
	remote := gittest.NewRemote(t, nil)
	dir := remote.Clone(t, "A")
	runner := &racingRunner{inner: gitx.NewCLIRunner(), t: t, remote: remote}

	res := newPusher(runner).Push(context.Background(), dir)

	assert.Equal(t, model.PushNoChanges, res.Status)
	assert.Zero(t, runner.pushes)
}

func TestPushCommitsAndPushes(t *testing.T) {
	remote := gittest.NewRemote(t, nil)
	dir := remote.Clone(t, "A")
	gittest.Write(t, dir, "new.txt", "hello\n")

	res := newPusher(gitx.NewCLIRunner()).Push(context.Background(), dir)

	require.NoError(t, res.Err)
	assert.Equal(t, model.PushPushed, res.Status)
	assert.False(t, res.Retried)
	assert.Nil(t, res.Pull)

	log := gittest.Git(t, remote.Bare, "log", "-1", "--format=%s", "main")
	assert.Equal(t, "Auto-sync: test", log)
}

func TestPushPullsFirstWhenRemoteAdvanced(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"a.txt": "a\n"})
	dir := remote.Clone(t, "A")
	remote.Publish(t, "ahead", map[string]string{"b.txt": "b\n"})
	gittest.Write(t, dir, "c.txt", "c\n")

	res := newPusher(gitx.NewCLIRunner()).Push(context.Background(), dir)

	require.NoError(t, res.Err)
	assert.Equal(t, model.PushPushed, res.Status)
	require.NotNil(t, res.Pull)
	assert.Equal(t, model.PullPulled, res.Pull.Status)
	assert.Equal(t, "b\n", gittest.Read(t, dir, "b.txt"))
	assert.Equal(t, "c\n", gittest.Read(t, dir, "c.txt"))
}

func TestPushRetriesOnceAfterRace(t *testing.T) {
	remote := gittest.NewRemote(t, nil)
	dir := remote.Clone(t, "A")
	gittest.Write(t, dir, "mine.txt", "mine\n")
	runner := &racingRunner{inner: gitx.NewCLIRunner(), t: t, remote: remote, raceOn: map[int]bool{1: true}}

	res := newPusher(runner).Push(context.Background(), dir)

	require.NoError(t, res.Err)
	assert.Equal(t, model.PushPushed, res.Status)
	assert.True(t, res.Retried)
	assert.Equal(t, 2, runner.pushes)

	files := gittest.Git(t, remote.Bare, "ls-tree", "--name-only", "main")
	assert.Contains(t, files, "mine.txt")
	assert.Contains(t, files, "race1.txt")
}

func TestPushGivesUpAfterSecondRejection(t *testing.T) {
	remote := gittest.NewRemote(t, nil)
	dir := remote.Clone(t, "A")
	gittest.Write(t, dir, "mine.txt", "mine\n")
	runner := &racingRunner{inner: gitx.NewCLIRunner(), t: t, remote: remote, raceOn: map[int]bool{1: true, 2: true, 3: true}}

	res := newPusher(runner).Push(context.Background(), dir)

	assert.Equal(t, model.PushFailed, res.Status)
	assert.True(t, res.Retried)
	assert.ErrorIs(t, res.Err, gitx.ErrPushRejected)
	assert.Equal(t, 2, runner.pushes, "no third attempt")
}
