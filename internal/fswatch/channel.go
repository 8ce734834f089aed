package fswatch

import "fmt"

// Channel is an OS notification source. Read fills buf with packed records in
// the inotify(7) layout (see Decoder). A Channel is driven from a single
// goroutine, except Interrupt, which may be called from any goroutine.
type Channel interface {
	// AddWatch starts notifications for path and returns its handle.
	AddWatch(path string, mask EventMask) (int, error)

	// RemoveWatch stops notifications for a handle.
	RemoveWatch(handle int) error

	// Read blocks until records are available, the channel fails, or
	// Interrupt is called (ErrInterrupted).
	Read(buf []byte) (int, error)

	// Interrupt unblocks a pending or future Read.
	Interrupt() error

	// Close releases the channel. Reads after Close return ErrClosed.
	Close() error
}

// Backend names accepted by OpenChannel.
const (
	BackendInotify  = "inotify"
	BackendFsnotify = "fsnotify"
)

// OpenChannel opens the named backend. An empty name selects the platform
// default.
func OpenChannel(backend string) (Channel, error) {
	if backend == "" {
		backend = DefaultBackend
	}
	var (
		ch  Channel
		err error
	)
	switch backend {
	case BackendInotify:
		ch, err = NewInotifyChannel()
	case BackendFsnotify:
		ch, err = NewFsnotifyChannel()
	default:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}
