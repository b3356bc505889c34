package gitx

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"reposync/internal/gitx/gittest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRunner struct {
	calls   [][]string
	respond func(args []string) (string, error)
}

func (r *scriptedRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	r.calls = append(r.calls, args)
	return r.respond(args)
}

func TestParsePorcelain(t *testing.T) {
	out := " M notes.txt\x00?? new dir/file.txt\x00R  renamed.txt\x00original.txt\x00!! ignored.log\x00A  added.go\x00"

	assert.Equal(t,
		[]string{"notes.txt", "new dir/file.txt", "renamed.txt", "added.go"},
		parsePorcelain(out))
	assert.Empty(t, parsePorcelain(""))
}

func TestPushClassifiesRejection(t *testing.T) {
	runner := &scriptedRunner{respond: func(args []string) (string, error) {
		return "", &Error{
			Args:   args,
			Stdout: "!\trefs/heads/main:refs/heads/main\t[rejected] (fetch first)\n",
			Stderr: "error: failed to push some refs",
			Err:    errors.New("exit status 1"),
		}
	}}

	err := Open("/repo", runner).Push(context.Background())
	assert.ErrorIs(t, err, ErrPushRejected)
}

func TestPushOtherFailureIsNotRejection(t *testing.T) {
	runner := &scriptedRunner{respond: func(args []string) (string, error) {
		return "", &Error{Args: args, Stderr: "remote: Permission denied", Err: errors.New("exit status 128")}
	}}

	err := Open("/repo", runner).Push(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPushRejected)
	assert.Contains(t, err.Error(), "Permission denied")
}

func TestCommitNothingToCommit(t *testing.T) {
	runner := &scriptedRunner{respond: func(args []string) (string, error) {
		return "", &Error{Args: args, Stdout: "nothing to commit, working tree clean\n", Err: errors.New("exit status 1")}
	}}

	err := Open("/repo", runner).Commit(context.Background(), "msg")
	assert.ErrorIs(t, err, ErrNothingToCommit)
}

func TestRepoAgainstRealGit(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"a.txt": "a\n", "b.txt": "b\n"})
	dir := remote.Clone(t, "local")
	ctx := context.Background()
	repo := Open(dir, nil)

	assert.True(t, IsRepository(dir))
	assert.False(t, IsRepository(filepath.Dir(dir)))

	changed, err := repo.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, changed)

	gittest.Write(t, dir, "a.txt", "local edit\n")
	gittest.Write(t, dir, "untracked.txt", "u\n")
	changed, err = repo.Status(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "untracked.txt"}, changed)

	remote.Publish(t, "remote edit", map[string]string{"b.txt": "remote\n"})
	require.NoError(t, repo.Fetch(ctx))

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	up, err := repo.Upstream(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, head, up)

	names, err := repo.DiffNames(ctx, "HEAD", "@{u}")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, names)

	stashed, err := repo.StashPush(ctx, "test")
	require.NoError(t, err)
	assert.True(t, stashed)

	tracked, untracked, err := repo.StashFiles(ctx, "stash@{0}")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, tracked)
	assert.Equal(t, []string{"untracked.txt"}, untracked)

	require.NoError(t, repo.Pull(ctx))
	assert.Equal(t, "remote\n", gittest.Read(t, dir, "b.txt"))

	require.NoError(t, repo.StashPop(ctx))
	assert.Equal(t, "local edit\n", gittest.Read(t, dir, "a.txt"))

	again, err := repo.StashPush(ctx, "nothing")
	require.NoError(t, err)
	assert.True(t, again)
	require.NoError(t, repo.StashPop(ctx))

	require.NoError(t, repo.AddAll(ctx))
	require.NoError(t, repo.Commit(ctx, "local commit"))
	assert.ErrorIs(t, repo.Commit(ctx, "again"), ErrNothingToCommit)
	require.NoError(t, repo.Push(ctx))
}

func TestPushRejectedAgainstRealGit(t *testing.T) {
	remote := gittest.NewRemote(t, nil)
	dir := remote.Clone(t, "local")
	ctx := context.Background()
	repo := Open(dir, nil)

	remote.Publish(t, "elsewhere", map[string]string{"other.txt": "x\n"})
	gittest.Write(t, dir, "mine.txt", "y\n")
	gittest.Commit(t, dir, "mine")

	err := repo.Push(ctx)
	require.ErrorIs(t, err, ErrPushRejected)

	require.NoError(t, repo.Pull(ctx))
	require.NoError(t, repo.Push(ctx))
}

func TestStashPushWithCleanTree(t *testing.T) {
	remote := gittest.NewRemote(t, nil)
	dir := remote.Clone(t, "local")

	stashed, err := Open(dir, nil).StashPush(context.Background(), "empty")
	require.NoError(t, err)
	assert.False(t, stashed)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Args: []string{"fetch", "--quiet"}, Stderr: "  fatal: no remote \n", Err: errors.New("exit status 128")}
	assert.Equal(t, "git fetch --quiet failed: fatal: no remote", err.Error())
	assert.True(t, strings.HasPrefix((&Error{Args: []string{"x"}, Err: errors.New("boom")}).Error(), "git x failed: boom"))
}
