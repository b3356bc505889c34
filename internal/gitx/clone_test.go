package gitx

import (
	"context"
	"path/filepath"
	"testing"

	"reposync/internal/gitx/gittest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryIsEmpty(t *testing.T) {
	cases := []struct {
		name    string
		summary Summary
		want    bool
	}{
		{name: "no commits", summary: Summary{}, want: true},
		{name: "readme only", summary: Summary{Commits: 1, Files: []string{"README.md"}}, want: true},
		{name: "lowercase readme", summary: Summary{Commits: 1, Files: []string{"readme.txt"}}, want: true},
		{name: "readme and license", summary: Summary{Commits: 1, Files: []string{"LICENSE", "README.md"}}, want: false},
		{name: "single other file", summary: Summary{Commits: 1, Files: []string{"main.go"}}, want: false},
		{name: "readme without extension", summary: Summary{Commits: 1, Files: []string{"README"}}, want: false},
		{name: "two commits", summary: Summary{Commits: 2}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.summary.IsEmpty())
		})
	}
}

func TestInspect(t *testing.T) {
	gittest.RequireGit(t)
	root := t.TempDir()

	zero := gittest.Init(t, filepath.Join(root, "zero"))
	s, err := Inspect(zero)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Commits)
	assert.True(t, s.IsEmpty())

	readme := gittest.Init(t, filepath.Join(root, "readme"))
	gittest.Write(t, readme, "README.md", "# hi\n")
	gittest.Commit(t, readme, "init")
	s, err = Inspect(readme)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Commits)
	assert.Equal(t, []string{"README.md"}, s.Files)
	assert.True(t, s.IsEmpty())

	licensed := gittest.Init(t, filepath.Join(root, "licensed"))
	gittest.Write(t, licensed, "README.md", "# hi\n")
	gittest.Write(t, licensed, "LICENSE", "MIT\n")
	gittest.Commit(t, licensed, "init")
	s, err = Inspect(licensed)
	require.NoError(t, err)
	assert.False(t, s.IsEmpty())

	gittest.Write(t, readme, "README.md", "# more\n")
	gittest.Commit(t, readme, "second")
	s, err = Inspect(readme)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Commits)
	assert.False(t, s.IsEmpty())

	_, err = Inspect(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"hello.txt": "hello\n"})
	dst := filepath.Join(t.TempDir(), "copy")

	require.NoError(t, Clone(context.Background(), remote.Bare, dst, Credentials{}))
	assert.True(t, IsRepository(dst))
	assert.Equal(t, "hello\n", gittest.Read(t, dst, "hello.txt"))
}

func TestCloneEmptyRemote(t *testing.T) {
	gittest.RequireGit(t)
	root := t.TempDir()
	bare := filepath.Join(root, "empty.git")
	gittest.Git(t, root, "init", "-q", "--bare", bare)
	dst := filepath.Join(root, "copy")

	require.NoError(t, Clone(context.Background(), bare, dst, Credentials{}))
	assert.True(t, IsRepository(dst))

	s, err := Inspect(dst)
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())
}
