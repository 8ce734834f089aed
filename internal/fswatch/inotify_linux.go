//go:build linux

package fswatch

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultBackend is the notification backend used when none is named.
const DefaultBackend = BackendInotify

// InotifyChannel reads packed records straight from an inotify descriptor.
// The descriptor is non-blocking and wrapped in an *os.File so reads park
// in the runtime poller and can be interrupted with a deadline.
type InotifyChannel struct {
	fd   int
	file *os.File

	mu     sync.Mutex
	closed bool
}

// NewInotifyChannel initialises a new inotify instance.
func NewInotifyChannel() (*InotifyChannel, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify_init: %w", err)
	}
	return &InotifyChannel{fd: fd, file: os.NewFile(uintptr(fd), "inotify")}, nil
}

// AddWatch implements Channel.
func (c *InotifyChannel) AddWatch(path string, mask EventMask) (int, error) {
	if c.isClosed() {
		return -1, ErrClosed
	}
	wd, err := unix.InotifyAddWatch(c.fd, path, uint32(mask))
	if err != nil {
		return -1, &os.PathError{Op: "inotify_add_watch", Path: path, Err: err}
	}
	return wd, nil
}

// RemoveWatch implements Channel.
func (c *InotifyChannel) RemoveWatch(handle int) error {
	if c.isClosed() {
		return ErrClosed
	}
	if _, err := unix.InotifyRmWatch(c.fd, uint32(handle)); err != nil {
		return fmt.Errorf("inotify_rm_watch %d: %w", handle, err)
	}
	return nil
}

// Read implements Channel.
func (c *InotifyChannel) Read(buf []byte) (int, error) {
	n, err := c.file.Read(buf)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return 0, ErrInterrupted
	case errors.Is(err, os.ErrClosed):
		return 0, ErrClosed
	default:
		return 0, err
	}
}

// Interrupt implements Channel.
func (c *InotifyChannel) Interrupt() error {
	if c.isClosed() {
		return nil
	}
	return c.file.SetReadDeadline(time.Now())
}

// Close implements Channel.
func (c *InotifyChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return c.file.Close()
}

func (c *InotifyChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
