//go:build unix

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Daemonize detaches the process from its controlling terminal. Go cannot
// fork safely, so the parent re-executes itself in a new session with stdio
// on /dev/null and returns parent=true; the caller should exit 0. In the
// child it finishes detaching (umask, working directory) and returns
// parent=false.
//
// It must run before any notification descriptors are opened.
func Daemonize() (parent bool, err error) {
	if IsChild() {
		unix.Umask(0)
		if err := os.Chdir("/"); err != nil {
			return false, fmt.Errorf("change working directory: %w", err)
		}
		return false, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return false, fmt.Errorf("locate executable: %w", err)
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), EnvMarker+"=1")
	// Nil stdio is connected to the null device.
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("start detached process: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return true, fmt.Errorf("release detached process: %w", err)
	}
	return true, nil
}
