package fswatch

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DefaultMaxWatches bounds the watch registry when no capacity is given.
const DefaultMaxWatches = 512

// WatchEntry maps a channel handle to the path it covers.
type WatchEntry struct {
	Handle int
	Path   string
}

// Registry is the bounded handle->path table. It is the only place that
// records what is watched and where. Entries are not purged when their
// directory disappears; the kernel simply stops reporting on them, and a
// recreated directory at the same path gets a fresh entry.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	channel  Channel
	logger   *zap.Logger
	capacity int

	byHandle map[int]*WatchEntry
	byPath   map[string]*WatchEntry
	order    []*WatchEntry
}

// NewRegistry creates a registry that installs watches on channel.
// A capacity below one selects DefaultMaxWatches.
func NewRegistry(channel Channel, capacity int, logger *zap.Logger) *Registry {
	if capacity < 1 {
		capacity = DefaultMaxWatches
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		channel:  channel,
		logger:   logger,
		capacity: capacity,
		byHandle: make(map[int]*WatchEntry),
		byPath:   make(map[string]*WatchEntry),
	}
}

// Add asks the channel to watch path for WatchMask and records the handle.
// The channel is always asked: a path that was removed and recreated gets a
// new handle, and the stale one stays inert. On error the registry is left
// unchanged.
func (r *Registry) Add(path string) (int, error) {
	current, known := r.byPath[path]
	if !known && len(r.order) >= r.capacity {
		return -1, r.full(path)
	}

	wd, err := r.channel.AddWatch(path, WatchMask)
	if err != nil {
		r.logger.Error("failed to add watch", zap.String("path", path), zap.Error(err))
		return -1, fmt.Errorf("add watch %s: %w", path, err)
	}
	if known && current.Handle == wd {
		return wd, nil
	}

	// The kernel hands back the existing descriptor when the same inode is
	// reached under another name, e.g. after a directory rename.
	if e, ok := r.byHandle[wd]; ok {
		r.logger.Info("watch moved",
			zap.Int("wd", wd), zap.String("from", e.Path), zap.String("to", path))
		if r.byPath[e.Path] == e {
			delete(r.byPath, e.Path)
		}
		e.Path = path
		r.byPath[path] = e
		return wd, nil
	}

	if len(r.order) >= r.capacity {
		// A recreated directory needs a new slot; undo the kernel watch.
		if rerr := r.channel.RemoveWatch(wd); rerr != nil {
			r.logger.Debug("remove watch", zap.Int("wd", wd), zap.Error(rerr))
		}
		return -1, r.full(path)
	}

	e := &WatchEntry{Handle: wd, Path: path}
	r.byHandle[wd] = e
	r.byPath[path] = e
	r.order = append(r.order, e)
	if known {
		r.logger.Info("watching recreated directory",
			zap.String("path", path), zap.Int("wd", wd), zap.Int("stale_wd", current.Handle))
	} else {
		r.logger.Info("watching directory", zap.String("path", path), zap.Int("wd", wd))
	}
	return wd, nil
}

func (r *Registry) full(path string) error {
	r.logger.Error("maximum number of watches reached",
		zap.String("path", path), zap.Int("max", r.capacity))
	return fmt.Errorf("%w (max=%d): %s", ErrRegistryFull, r.capacity, path)
}

// Resolve returns the path registered for handle.
func (r *Registry) Resolve(handle int) (string, bool) {
	e, ok := r.byHandle[handle]
	if !ok {
		return "", false
	}
	return e.Path, true
}

// Len returns the number of live entries.
func (r *Registry) Len() int { return len(r.order) }

// Cap returns the registry capacity.
func (r *Registry) Cap() int { return r.capacity }

// Entries returns the live entries in registration order.
func (r *Registry) Entries() []WatchEntry {
	out := make([]WatchEntry, len(r.order))
	for i, e := range r.order {
		out[i] = *e
	}
	return out
}

// RemoveAll removes every watch from the channel and empties the registry.
// Watches whose directory already vanished fail to remove; those errors are
// joined and returned but do not stop the sweep.
func (r *Registry) RemoveAll() error {
	var errs []error
	for _, e := range r.order {
		if err := r.channel.RemoveWatch(e.Handle); err != nil {
			r.logger.Debug("remove watch", zap.String("path", e.Path), zap.Int("wd", e.Handle), zap.Error(err))
			errs = append(errs, fmt.Errorf("remove watch %s: %w", e.Path, err))
		}
	}
	r.order = nil
	r.byHandle = make(map[int]*WatchEntry)
	r.byPath = make(map[string]*WatchEntry)
	return errors.Join(errs...)
}
