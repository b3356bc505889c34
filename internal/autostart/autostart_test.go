package autostart

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
	fail  string
}

func (r *recorder) run(name string, args ...string) ([]byte, error) {
	call := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, call)
	if r.fail != "" && strings.Contains(call, r.fail) {
		return []byte("boom"), errors.New("exit status 1")
	}
	return nil, nil
}

func TestLinux_InstallWritesUnitAndEnables(t *testing.T) {
	rec := &recorder{}
	l := &LinuxAutoStarter{run: rec.run, home: t.TempDir()}

	require.NoError(t, l.Install("/usr/local/bin/reposync"))

	path, err := l.servicePath()
	require.NoError(t, err)
	unit, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(unit), "ExecStart=/usr/local/bin/reposync watch")
	assert.Contains(t, string(unit), "[Service]")
	assert.Equal(t, "reposync.service", filepath.Base(path))

	assert.Equal(t, []string{
		"systemctl --user daemon-reload",
		"systemctl --user enable reposync.service",
		"systemctl --user start reposync.service",
	}, rec.calls)

	installed, err := l.IsInstalled()
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestLinux_InstallReportsSystemctlFailure(t *testing.T) {
	rec := &recorder{fail: "enable"}
	l := &LinuxAutoStarter{run: rec.run, home: t.TempDir()}

	err := l.Install("/bin/reposync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLinux_UninstallIsIdempotent(t *testing.T) {
	rec := &recorder{}
	l := &LinuxAutoStarter{run: rec.run, home: t.TempDir()}

	require.NoError(t, l.Install("/bin/reposync"))
	require.NoError(t, l.Uninstall())
	require.NoError(t, l.Uninstall())

	installed, err := l.IsInstalled()
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestWindows_InstallRegistersWatchTask(t *testing.T) {
	rec := &recorder{}
	w := &WindowsAutoStarter{run: rec.run}

	require.NoError(t, w.Install(`C:\reposync.exe`))
	require.Len(t, rec.calls, 1)
	assert.Contains(t, rec.calls[0], `"C:\reposync.exe" watch`)
	assert.Contains(t, rec.calls[0], taskName)
}
