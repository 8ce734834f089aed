package fswatch

import "errors"

var (
	// ErrRegistryFull is returned when the watch registry is at capacity.
	ErrRegistryFull = errors.New("fswatch: maximum number of watches reached")

	// ErrCallbacksFull is returned when the callback registry is at capacity.
	ErrCallbacksFull = errors.New("fswatch: maximum number of callbacks reached")

	// ErrBadPattern is returned for a glob that cannot be parsed.
	ErrBadPattern = errors.New("fswatch: invalid glob pattern")

	// ErrChannelRead wraps a failed read of the notification channel.
	ErrChannelRead = errors.New("fswatch: notification channel read failed")

	// ErrQueueOverflow means the kernel dropped events; watch coverage can no
	// longer be trusted.
	ErrQueueOverflow = errors.New("fswatch: kernel event queue overflowed")

	// ErrShortRecord means a record extends past the bytes that were read.
	ErrShortRecord = errors.New("fswatch: truncated event record")

	// ErrClosed is returned by a channel after Close.
	ErrClosed = errors.New("fswatch: notification channel closed")

	// ErrInterrupted is returned by a blocked Read after Interrupt.
	ErrInterrupted = errors.New("fswatch: read interrupted")
)
