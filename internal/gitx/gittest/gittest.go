// Package gittest builds throwaway repositories for tests that need a real
// git binary.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// RequireGit skips the test when no git binary is available.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// Git runs git in dir and fails the test on error.
func Git(t testing.TB, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_GLOBAL=/dev/null",
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_TERMINAL_PROMPT=0",
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}

	return strings.TrimSpace(string(out))
}

// Init creates an empty working tree with a committer identity.
func Init(t testing.TB, dir string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	Git(t, dir, "init", "-q", "-b", "main")
	Configure(t, dir)

	return dir
}

func Configure(t testing.TB, dir string) {
	t.Helper()
	Git(t, dir, "config", "user.name", "Test User")
	Git(t, dir, "config", "user.email", "test@example.com")
	Git(t, dir, "config", "commit.gpgsign", "false")
}

// Write creates or replaces a file relative to dir.
func Write(t testing.TB, dir, rel, content string) string {
	t.Helper()

	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}

	return p
}

// Touch sets the mtime of a file relative to dir.
func Touch(t testing.TB, dir, rel string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(filepath.Join(dir, rel), mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func Read(t testing.TB, dir, rel string) string {
	t.Helper()

	b, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}

	return string(b)
}

// Commit stages everything and commits it.
func Commit(t testing.TB, dir, message string) {
	t.Helper()
	Git(t, dir, "add", "-A")
	Git(t, dir, "commit", "-q", "-m", message)
}

// Remote is a bare repository plus a working clone used to publish commits
// "from elsewhere".
type Remote struct {
	Bare     string
	Upstream string
	root     string
}

// NewRemote creates a bare repository seeded with the given files.
func NewRemote(t testing.TB, files map[string]string) *Remote {
	t.Helper()
	RequireGit(t)

	root := t.TempDir()
	bare := filepath.Join(root, "remote.git")
	Git(t, root, "init", "-q", "--bare", "-b", "main", bare)

	upstream := filepath.Join(root, "upstream")
	Git(t, root, "clone", "-q", bare, upstream)
	Configure(t, upstream)
	Git(t, upstream, "checkout", "-q", "-B", "main")

	if len(files) == 0 {
		files = map[string]string{"README.md": "# seed\n"}
	}
	for rel, content := range files {
		Write(t, upstream, rel, content)
	}
	Commit(t, upstream, "seed")
	Git(t, upstream, "push", "-q", "-u", "origin", "main")

	return &Remote{Bare: bare, Upstream: upstream, root: root}
}

// Clone makes a new working copy of the remote.
func (r *Remote) Clone(t testing.TB, name string) string {
	t.Helper()

	dir := filepath.Join(r.root, name)
	Git(t, r.root, "clone", "-q", r.Bare, dir)
	Configure(t, dir)

	return dir
}

// Publish commits files from the upstream clone and pushes them.
func (r *Remote) Publish(t testing.TB, message string, files map[string]string) {
	t.Helper()

	Git(t, r.Upstream, "pull", "-q", "--no-rebase")
	for rel, content := range files {
		Write(t, r.Upstream, rel, content)
	}
	Commit(t, r.Upstream, message)
	Git(t, r.Upstream, "push", "-q", "origin", "main")
}
