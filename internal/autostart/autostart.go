package autostart

import (
	"os/exec"
	"runtime"
)

const serviceName = "reposync"

type AutoStarter interface {
	Install(execPath string) error
	Uninstall() error
	IsInstalled() (bool, error)
}

func New() AutoStarter {
	switch runtime.GOOS {
	case "windows":
		return &WindowsAutoStarter{run: combinedOutput}
	case "linux":
		return &LinuxAutoStarter{run: combinedOutput}
	default:
		return &UnsupportedAutoStarter{}
	}
}

// commandFunc runs an external program and returns its combined output.
type commandFunc func(name string, args ...string) ([]byte, error)

func combinedOutput(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

type UnsupportedAutoStarter struct{}

func (u *UnsupportedAutoStarter) Install(_ string) error {
	return nil
}

func (u *UnsupportedAutoStarter) Uninstall() error {
	return nil
}

func (u *UnsupportedAutoStarter) IsInstalled() (bool, error) {
	return false, nil
}
