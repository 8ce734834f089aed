// Package fswatch watches a directory subtree for file-level changes and
// dispatches matching events to registered handlers.
//
// An Engine owns a notification Channel, a bounded watch Registry, a bounded
// Callbacks list and a global filename Matcher. Setup (Start) and the event
// loop (Run) happen on one goroutine; nothing inside the engine is locked.
//
// The engine reads packed inotify-layout records from the channel, resolves
// each record's handle to a directory, extends the watch set when a new
// subdirectory appears in recursive mode, filters by filename and then
// invokes every matching callback in registration order.
package fswatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
)

// State is the lifecycle stage of an Engine.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures an Engine.
type Options struct {
	// Watch subdirectories, including ones created while running.
	Recursive bool

	// Global filename filter. Empty matches every name.
	Patterns []string

	// Registry capacities. Zero selects the defaults.
	MaxWatches   int
	MaxCallbacks int

	// Read buffer size in bytes. Values below MinBufferSize select
	// ReadBufferSize.
	BufferSize int

	Logger *zap.Logger
}

// Engine is the watch/event engine.
type Engine struct {
	opts      Options
	channel   Channel
	logger    *zap.Logger
	matcher   *Matcher
	registry  *Registry
	installer *Installer
	callbacks *Callbacks

	buf     []byte
	decoder Decoder
	stats   Stats

	state  atomic.Int32
	closed bool
}

// New creates an engine around an open channel. The engine takes ownership
// of the channel and closes it on teardown.
func New(channel Channel, opts Options) (*Engine, error) {
	if channel == nil {
		return nil, errors.New("fswatch: nil channel")
	}
	matcher, err := NewMatcher(opts.Patterns)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BufferSize < MinBufferSize {
		opts.BufferSize = ReadBufferSize
	}

	registry := NewRegistry(channel, opts.MaxWatches, opts.Logger)
	e := &Engine{
		opts:      opts,
		channel:   channel,
		logger:    opts.Logger,
		matcher:   matcher,
		registry:  registry,
		installer: NewInstaller(registry, opts.Logger),
		callbacks: NewCallbacks(opts.MaxCallbacks),
		buf:       make([]byte, opts.BufferSize),
	}
	e.state.Store(int32(StateInitializing))
	return e, nil
}

// Register adds a callback. Callbacks can only be registered before Run.
func (e *Engine) Register(mask EventMask, pattern string, h Handler) (int, error) {
	if e.State() != StateInitializing {
		return -1, fmt.Errorf("fswatch: register callback while %s", e.State())
	}
	id, err := e.callbacks.Register(mask, pattern, h)
	if err != nil {
		e.logger.Error("failed to register callback",
			zap.Stringer("mask", mask), zap.String("pattern", pattern), zap.Error(err))
		return -1, err
	}
	e.logger.Debug("registered callback",
		zap.Int("id", id), zap.Stringer("mask", mask), zap.String("pattern", pattern))
	return id, nil
}

// RegisterFunc is Register for a plain function.
func (e *Engine) RegisterFunc(mask EventMask, pattern string, fn func(path, name string)) (int, error) {
	return e.Register(mask, pattern, HandlerFunc(fn))
}

// Start watches root and, in recursive mode, every directory below it.
// Failing to watch root is fatal; failures below root are logged.
func (e *Engine) Start(root string) error {
	if e.State() != StateInitializing {
		return fmt.Errorf("fswatch: start while %s", e.State())
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", root, err)
	}
	if _, err := e.registry.Add(abs); err != nil {
		return err
	}
	if e.opts.Recursive {
		e.logger.Info("recursive mode enabled, watching all subdirectories", zap.String("root", abs))
		if _, err := e.installer.Install(abs); err != nil {
			e.logger.Error("recursive watch incomplete", zap.Error(err))
		}
		e.logger.Info("total watches", zap.Int("count", e.registry.Len()))
	}
	return nil
}

// Run reads and dispatches events until ctx is cancelled or the channel
// fails. Cancellation returns nil; a read failure, queue overflow or
// corrupt record is returned as an error. Either way the engine is torn down
// before Run returns.
func (e *Engine) Run(ctx context.Context) (err error) {
	if !e.state.CompareAndSwap(int32(StateInitializing), int32(StateRunning)) {
		return fmt.Errorf("fswatch: run while %s", e.State())
	}
	stop := context.AfterFunc(ctx, func() {
		if err := e.channel.Interrupt(); err != nil {
			e.logger.Warn("interrupt channel", zap.Error(err))
		}
	})
	defer func() {
		stop()
		if cerr := e.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for {
		n, rerr := e.channel.Read(e.buf)
		if rerr != nil {
			if errors.Is(rerr, ErrInterrupted) {
				e.logger.Debug("event loop interrupted")
				return nil
			}
			e.logger.Error("read error", zap.Error(rerr))
			return fmt.Errorf("%w: %w", ErrChannelRead, rerr)
		}
		if err := e.process(n); err != nil {
			return err
		}
	}
}

// process decodes and handles the records from one read, in order.
func (e *Engine) process(n int) error {
	e.stats.Reads++
	e.decoder.Reset(e.buf, n)
	for {
		ev, ok, err := e.decoder.Next()
		if err != nil {
			e.logger.Error("corrupt event stream", zap.Error(err))
			return err
		}
		if !ok {
			return nil
		}
		e.stats.Records++
		if err := e.handle(ev); err != nil {
			return err
		}
	}
}

// handle runs one record through resolution, recursion, filtering and
// dispatch.
func (e *Engine) handle(ev RawEvent) error {
	if ev.Mask.Has(EventOverflow) {
		e.logger.Error("kernel event queue overflowed, filesystem changes were lost")
		return ErrQueueOverflow
	}
	if ev.Name == "" {
		e.stats.Nameless++
		if ev.Mask.Has(EventIgnored) {
			e.logger.Debug("watch removed by kernel", zap.Int("wd", ev.Handle))
		}
		return nil
	}

	path, ok := e.registry.Resolve(ev.Handle)
	if !ok {
		e.stats.UnknownHandles++
		e.logger.Warn("received event for unknown watch descriptor",
			zap.Int("wd", ev.Handle), zap.String("name", ev.Name))
		return nil
	}

	// Watch the new directory before anything else so a create-then-populate
	// sequence inside it is not missed.
	if e.opts.Recursive && ev.Mask.Has(EventCreate|EventIsDir) {
		e.watchNewDirectory(filepath.Join(path, ev.Name))
	}

	if !e.matcher.Matches(ev.Name) {
		e.stats.Filtered++
		return nil
	}

	e.logEvent(ev.Mask, path, ev.Name)
	e.stats.Dispatched++
	e.stats.Callbacks += int64(e.callbacks.Dispatch(ev.Mask, path, ev.Name))
	return nil
}

// watchNewDirectory adds dir and anything already created beneath it.
func (e *Engine) watchNewDirectory(dir string) {
	before := e.registry.Len()
	if _, err := e.registry.Add(dir); err != nil {
		return
	}
	if e.registry.Len() == before {
		return
	}
	e.stats.WatchesAdded++
	e.logger.Info("added watch for new directory", zap.String("path", dir))

	n, err := e.installer.Install(dir)
	e.stats.WatchesAdded += int64(n)
	if err != nil {
		e.logger.Error("recursive watch incomplete", zap.Error(err))
	}
}

var eventLogLines = []struct {
	mask EventMask
	msg  string
}{
	{EventCreate, "File created"},
	{EventDelete, "File deleted"},
	{EventModify, "File modified"},
	{EventMovedFrom, "File moved from"},
	{EventMovedTo, "File moved to"},
}

func (e *Engine) logEvent(mask EventMask, path, name string) {
	if !e.logger.Core().Enabled(zap.InfoLevel) {
		return
	}
	for _, l := range eventLogLines {
		if mask.Any(l.mask) {
			e.logger.Info(l.msg, zap.String("dir", path), zap.String("name", name))
		}
	}
}

// Close tears the engine down: every watch is removed, the channel is
// closed and the callbacks are released. It is safe to call more than once
// but not concurrently with Run; Run calls it on return.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	defer e.state.Store(int32(StateTerminated))

	// Stale watches fail to remove; the registry logs them.
	_ = e.registry.RemoveAll()
	err := e.channel.Close()
	e.callbacks.Release()

	e.logger.Info("engine stopped", zap.Object("stats", e.stats))
	if err != nil && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("close channel: %w", err)
	}
	return nil
}

// State returns the current lifecycle stage. It may be called from any
// goroutine.
func (e *Engine) State() State { return State(e.state.Load()) }

// Stats returns the dispatcher counters. Call it after Run returns.
func (e *Engine) Stats() Stats { return e.stats }

// Registry exposes the watch registry for inspection.
func (e *Engine) Registry() *Registry { return e.registry }

// Callbacks exposes the callback registry for inspection.
func (e *Engine) Callbacks() *Callbacks { return e.callbacks }

// Patterns returns the global filter set.
func (e *Engine) Patterns() []string { return e.matcher.Patterns() }
