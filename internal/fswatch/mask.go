package fswatch

import (
	"fmt"
	"strings"
)

// EventMask is a bitset of filesystem event kinds. Bit values are the
// kernel's inotify(7) values so raw records need no translation; they are
// spelled out here so the portable backend builds off Linux.
type EventMask uint32

// Event kinds
const (
	EventModify    EventMask = 0x00000002
	EventAttrib    EventMask = 0x00000004
	EventMovedFrom EventMask = 0x00000040
	EventMovedTo   EventMask = 0x00000080
	EventCreate    EventMask = 0x00000100
	EventDelete    EventMask = 0x00000200

	// Flags carried on records but never requested.
	EventUnmounted EventMask = 0x00002000
	EventOverflow  EventMask = 0x00004000
	EventIgnored   EventMask = 0x00008000
	EventIsDir     EventMask = 0x40000000
)

// WatchMask is the fixed set of events every watch is registered for.
const WatchMask = EventCreate | EventModify | EventDelete | EventMovedFrom | EventMovedTo | EventAttrib

// EventRename covers both halves of a rename.
const EventRename = EventMovedFrom | EventMovedTo

var eventNames = []struct {
	mask EventMask
	name string
}{
	{EventCreate, "create"},
	{EventModify, "modify"},
	{EventDelete, "delete"},
	{EventMovedFrom, "moved_from"},
	{EventMovedTo, "moved_to"},
	{EventAttrib, "attrib"},
	{EventIsDir, "isdir"},
	{EventOverflow, "overflow"},
	{EventIgnored, "ignored"},
	{EventUnmounted, "unmount"},
}

// Has reports whether every bit of flag is set.
func (m EventMask) Has(flag EventMask) bool {
	return m&flag == flag
}

// Any reports whether m and other share at least one bit.
func (m EventMask) Any(other EventMask) bool {
	return m&other != 0
}

func (m EventMask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	rest := m
	for _, e := range eventNames {
		if m&e.mask != 0 {
			parts = append(parts, e.name)
			rest &^= e.mask
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseEvents converts user-facing event names into a mask. An empty list
// selects every event in WatchMask.
func ParseEvents(names []string) (EventMask, error) {
	if len(names) == 0 {
		return WatchMask, nil
	}
	var mask EventMask
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "create":
			mask |= EventCreate
		case "write", "modify":
			mask |= EventModify
		case "remove", "delete":
			mask |= EventDelete
		case "rename", "move":
			mask |= EventRename
		case "moved_from", "moved-from":
			mask |= EventMovedFrom
		case "moved_to", "moved-to":
			mask |= EventMovedTo
		case "chmod", "attrib":
			mask |= EventAttrib
		case "all":
			mask |= WatchMask
		default:
			return 0, fmt.Errorf("unknown event type: %s", n)
		}
	}
	return mask, nil
}
