// Package daemon holds the process plumbing around the watcher: detaching
// from the terminal, the PID file, and signal-driven shutdown.
package daemon

import (
	"os"
)

// EnvMarker is set in the environment of the detached child.
const EnvMarker = "FSWATCHER_DAEMONIZED"

// IsChild reports whether this process is the detached copy started by
// Daemonize.
func IsChild() bool {
	return os.Getenv(EnvMarker) == "1"
}
