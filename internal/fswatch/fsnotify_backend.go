package fswatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FsnotifyChannel adapts fsnotify to the Channel contract for platforms
// without inotify. fsnotify reports full paths, so the channel hands out its
// own handles per watched directory and re-packs every event into the
// inotify record layout consumed by Decoder.
//
// AddWatch, RemoveWatch and Read must be called from one goroutine.
type FsnotifyChannel struct {
	watcher *fsnotify.Watcher

	next    int
	handles map[string]int
	paths   map[int]string
	masks   map[int]EventMask

	// gone holds watched directories that were removed, so the duplicate
	// report some platforms send (once from the parent, once from the
	// directory itself) is dropped.
	gone map[string]struct{}

	pending []byte

	interrupt chan struct{}
	once      sync.Once
}

// NewFsnotifyChannel creates an fsnotify watcher.
func NewFsnotifyChannel() (*FsnotifyChannel, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}
	return &FsnotifyChannel{
		watcher:   w,
		next:      1,
		handles:   make(map[string]int),
		paths:     make(map[int]string),
		masks:     make(map[int]EventMask),
		gone:      make(map[string]struct{}),
		interrupt: make(chan struct{}),
	}, nil
}

// AddWatch implements Channel. Watching a path twice returns the same handle.
func (c *FsnotifyChannel) AddWatch(path string, mask EventMask) (int, error) {
	path = filepath.Clean(path)
	if wd, ok := c.handles[path]; ok {
		c.masks[wd] = mask
		return wd, nil
	}
	if err := c.watcher.Add(path); err != nil {
		if errors.Is(err, fsnotify.ErrClosed) {
			return -1, ErrClosed
		}
		return -1, err
	}
	wd := c.next
	c.next++
	c.handles[path] = wd
	c.paths[wd] = path
	c.masks[wd] = mask
	return wd, nil
}

// RemoveWatch implements Channel.
func (c *FsnotifyChannel) RemoveWatch(handle int) error {
	path, ok := c.paths[handle]
	if !ok {
		return fmt.Errorf("unknown watch handle %d", handle)
	}
	c.forget(handle, path)
	if err := c.watcher.Remove(path); err != nil {
		if errors.Is(err, fsnotify.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Read implements Channel. It blocks for the first event, then packs as many
// queued events as fit in buf. A record that does not fit is held for the
// next call.
func (c *FsnotifyChannel) Read(buf []byte) (int, error) {
	if len(buf) < HeaderSize {
		return 0, fmt.Errorf("read buffer too small: %d bytes", len(buf))
	}

	out := buf[:0]
	if len(c.pending) > 0 {
		if len(c.pending) > len(buf) {
			return 0, fmt.Errorf("read buffer too small for pending record: %d bytes", len(c.pending))
		}
		out = append(out, c.pending...)
		c.pending = c.pending[:0]
	} else {
		select {
		case <-c.interrupt:
			return 0, ErrInterrupted
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return 0, ErrClosed
			}
			out = c.pack(out, ev, len(buf))
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return 0, ErrClosed
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				out = AppendRecord(out, RawEvent{Handle: -1, Mask: EventOverflow})
			} else {
				return 0, err
			}
		}
	}

	for len(c.pending) == 0 {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return len(out), nil
			}
			out = c.pack(out, ev, len(buf))
		default:
			return len(out), nil
		}
	}
	return len(out), nil
}

// pack appends ev to out, or to the pending buffer when out has no room.
func (c *FsnotifyChannel) pack(out []byte, ev fsnotify.Event, limit int) []byte {
	for _, raw := range c.translate(ev) {
		if len(c.pending) == 0 && len(out)+RecordSize(raw) <= limit {
			out = AppendRecord(out, raw)
			continue
		}
		c.pending = AppendRecord(c.pending, raw)
	}
	return out
}

// translate maps one fsnotify event onto inotify-style records.
func (c *FsnotifyChannel) translate(ev fsnotify.Event) []RawEvent {
	name := filepath.Clean(ev.Name)

	var mask EventMask
	if ev.Has(fsnotify.Create) {
		mask |= EventCreate
	}
	if ev.Has(fsnotify.Write) {
		mask |= EventModify
	}
	if ev.Has(fsnotify.Remove) {
		mask |= EventDelete
	}
	if ev.Has(fsnotify.Rename) {
		mask |= EventMovedFrom
	}
	if ev.Has(fsnotify.Chmod) {
		mask |= EventAttrib
	}

	if _, dup := c.gone[name]; dup {
		if mask.Has(EventCreate) {
			delete(c.gone, name)
		} else if mask.Any(EventDelete | EventMovedFrom) {
			delete(c.gone, name)
			return nil
		}
	}

	var records []RawEvent

	// The watched directory itself went away: the parent watch (if any)
	// reports the name, and this watch becomes inert.
	selfWD, isWatched := c.handles[name]
	self := isWatched && mask.Any(EventDelete|EventMovedFrom)
	if self {
		mask |= EventIsDir
		c.forget(selfWD, name)
		c.gone[name] = struct{}{}
		records = append(records, RawEvent{Handle: selfWD, Mask: EventIgnored})
	}

	if mask.Has(EventCreate) {
		if fi, err := os.Lstat(name); err == nil && fi.IsDir() {
			mask |= EventIsDir
		}
	}

	wd, ok := c.handles[filepath.Dir(name)]
	if !ok {
		if self {
			return records
		}
		wd = -1
	} else if !c.masks[wd].Any(mask) {
		return records
	}
	return append([]RawEvent{{Handle: wd, Mask: mask, Name: filepath.Base(name)}}, records...)
}

func (c *FsnotifyChannel) forget(wd int, path string) {
	delete(c.handles, path)
	delete(c.paths, wd)
	delete(c.masks, wd)
}

// Interrupt implements Channel.
func (c *FsnotifyChannel) Interrupt() error {
	c.once.Do(func() { close(c.interrupt) })
	return nil
}

// Close implements Channel.
func (c *FsnotifyChannel) Close() error {
	return c.watcher.Close()
}
