//go:build !unix

package daemon

import "errors"

// Daemonize is only supported on Unix systems.
func Daemonize() (parent bool, err error) {
	return false, errors.New("daemon: daemon mode is not supported on this platform")
}
