// Package fswatch watches a directory tree for file-level changes and runs
// callbacks for the events that match.
//
// It re-exports the engine used by the fswatcher command so it can be
// embedded in other programs.
package fswatch

import (
	"context"
	"os"

	internal "github.com/TFMV/fswatcher/internal/fswatch"
	"go.uber.org/zap"
)

// Re-export the engine types
type (
	// Engine is the watch/event engine.
	Engine = internal.Engine

	// Options configures an Engine.
	Options = internal.Options

	// Channel is a source of packed inotify-layout event records.
	Channel = internal.Channel

	// EventMask is a set of event kinds.
	EventMask = internal.EventMask

	// Handler receives the directory and file name of a matching event.
	Handler = internal.Handler

	// HandlerFunc adapts a plain function to Handler.
	HandlerFunc = internal.HandlerFunc

	// Callback pairs a handler with the events and file pattern it wants.
	Callback = internal.CallbackEntry

	State    = internal.State
	Stats    = internal.Stats
	LogLevel = internal.LogLevel
)

// Re-export the constants
const (
	EventCreate    = internal.EventCreate
	EventModify    = internal.EventModify
	EventDelete    = internal.EventDelete
	EventAttrib    = internal.EventAttrib
	EventMovedFrom = internal.EventMovedFrom
	EventMovedTo   = internal.EventMovedTo
	EventRename    = internal.EventRename
	EventIsDir     = internal.EventIsDir
	WatchMask      = internal.WatchMask

	StateInitializing = internal.StateInitializing
	StateRunning      = internal.StateRunning
	StateTerminated   = internal.StateTerminated

	LogLevelError = internal.LogLevelError
	LogLevelWarn  = internal.LogLevelWarn
	LogLevelInfo  = internal.LogLevelInfo
	LogLevelDebug = internal.LogLevelDebug

	BackendInotify  = internal.BackendInotify
	BackendFsnotify = internal.BackendFsnotify
	DefaultBackend  = internal.DefaultBackend

	DefaultMaxWatches   = internal.DefaultMaxWatches
	DefaultMaxCallbacks = internal.DefaultMaxCallbacks
)

// Re-export the errors
var (
	ErrRegistryFull  = internal.ErrRegistryFull
	ErrCallbacksFull = internal.ErrCallbacksFull
	ErrBadPattern    = internal.ErrBadPattern
	ErrChannelRead   = internal.ErrChannelRead
	ErrQueueOverflow = internal.ErrQueueOverflow
)

// New creates an engine around an open channel.
func New(channel Channel, opts Options) (*Engine, error) {
	return internal.New(channel, opts)
}

// OpenChannel opens a notification channel for the named backend.
func OpenChannel(backend string) (Channel, error) {
	return internal.OpenChannel(backend)
}

// ParseEvents converts event names such as "create" or "rename" to a mask.
func ParseEvents(names []string) (EventMask, error) {
	return internal.ParseEvents(names)
}

// NewLogger returns the console logger the command uses.
var NewLogger = internal.NewLogger

// Watch watches root with the default backend and runs callbacks until ctx
// is cancelled.
func Watch(ctx context.Context, root string, opts Options, callbacks ...Callback) error {
	channel, err := OpenChannel(DefaultBackend)
	if err != nil {
		return err
	}
	engine, err := New(channel, opts)
	if err != nil {
		channel.Close()
		return err
	}
	for _, cb := range callbacks {
		if _, err := engine.Register(cb.Mask, cb.Pattern, cb.Handler); err != nil {
			engine.Close()
			return err
		}
	}
	if err := engine.Start(root); err != nil {
		engine.Close()
		return err
	}
	return engine.Run(ctx)
}

// WatchWithExec runs cmdTemplate for each event in mask. Placeholders:
// {} full path, {base} file name, {dir} directory, {event}, {time}.
func WatchWithExec(ctx context.Context, root string, opts Options, mask EventMask, cmdTemplate string) error {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	var cbs []Callback
	for _, kind := range internal.SplitMask(mask) {
		cbs = append(cbs, Callback{
			Mask:    kind,
			Handler: internal.ExecHandler(ctx, opts.Logger, os.Stdout, cmdTemplate, internal.EventLabel(kind)),
		})
	}
	return Watch(ctx, root, opts, cbs...)
}

// WatchWithFormat prints formatTemplate to stdout for each event in mask.
func WatchWithFormat(ctx context.Context, root string, opts Options, mask EventMask, formatTemplate string) error {
	var cbs []Callback
	for _, kind := range internal.SplitMask(mask) {
		cbs = append(cbs, Callback{
			Mask:    kind,
			Handler: internal.FormatHandler(os.Stdout, formatTemplate, internal.EventLabel(kind)),
		})
	}
	return Watch(ctx, root, opts, cbs...)
}
