//go:build !linux

package fswatch

import "errors"

// DefaultBackend is the notification backend used when none is named.
const DefaultBackend = BackendFsnotify

// NewInotifyChannel is only available on Linux.
func NewInotifyChannel() (Channel, error) {
	return nil, errors.New("fswatch: inotify backend requires linux")
}
