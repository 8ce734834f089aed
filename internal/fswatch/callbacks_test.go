package fswatch

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCallbacksDispatch(t *testing.T) {
	c := NewCallbacks(0)
	var fired []string
	record := func(id string) func(string, string) {
		return func(path, name string) { fired = append(fired, id) }
	}

	c.RegisterFunc(EventCreate, "", record("create"))
	c.RegisterFunc(EventCreate|EventDelete, "*.log", record("create-delete-log"))
	c.RegisterFunc(EventModify, "", record("modify"))
	c.RegisterFunc(WatchMask, "*.txt", record("all-txt"))

	tests := []struct {
		mask EventMask
		name string
		want []string
	}{
		{EventCreate, "a.log", []string{"create", "create-delete-log"}},
		{EventCreate | EventIsDir, "dir", []string{"create"}},
		{EventDelete, "a.log", []string{"create-delete-log"}},
		{EventModify, "a.txt", []string{"modify", "all-txt"}},
		{EventAttrib, "a.bin", nil},
	}
	for _, tt := range tests {
		fired = nil
		n := c.Dispatch(tt.mask, "/w", tt.name)
		if diff := cmp.Diff(tt.want, fired); diff != "" {
			t.Errorf("Dispatch(%s, %q) mismatch (-want +got):\n%s", tt.mask, tt.name, diff)
		}
		if n != len(tt.want) {
			t.Errorf("Dispatch(%s, %q) = %d, want %d", tt.mask, tt.name, n, len(tt.want))
		}
	}
}

func TestCallbacksHandlerArguments(t *testing.T) {
	c := NewCallbacks(1)
	var gotPath, gotName string
	c.RegisterFunc(EventCreate, "", func(path, name string) {
		gotPath, gotName = path, name
	})
	c.Dispatch(EventCreate, "/tmp/w", "a.log")
	if gotPath != "/tmp/w" || gotName != "a.log" {
		t.Errorf("Handler got (%q, %q), want (/tmp/w, a.log)", gotPath, gotName)
	}
}

func TestCallbacksPatternBracesAreLiteral(t *testing.T) {
	c := NewCallbacks(1)
	c.RegisterFunc(EventCreate, "{a,b}.log", func(string, string) {})

	if n := c.Dispatch(EventCreate, "/w", "a.log"); n != 0 {
		t.Errorf("Expected a.log not to match, got %d", n)
	}
	if n := c.Dispatch(EventCreate, "/w", "{a,b}.log"); n != 1 {
		t.Errorf("Expected {a,b}.log to match, got %d", n)
	}
}

func TestCallbacksFull(t *testing.T) {
	c := NewCallbacks(2)
	noop := func(string, string) {}
	for i := 0; i < 2; i++ {
		id, err := c.RegisterFunc(EventCreate, "", noop)
		if err != nil || id != i {
			t.Fatalf("RegisterFunc = %d, %v; want %d, nil", id, err, i)
		}
	}
	if _, err := c.RegisterFunc(EventCreate, "", noop); !errors.Is(err, ErrCallbacksFull) {
		t.Errorf("Expected ErrCallbacksFull, got %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", c.Len())
	}
}

func TestCallbacksRejectsInvalid(t *testing.T) {
	c := NewCallbacks(4)
	if _, err := c.Register(EventCreate, "", nil); err == nil {
		t.Error("Expected error for nil handler")
	}
	if _, err := c.RegisterFunc(EventCreate, "[", func(string, string) {}); !errors.Is(err, ErrBadPattern) {
		t.Errorf("Expected ErrBadPattern, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected no entries, got %d", c.Len())
	}
}

func TestCallbacksRelease(t *testing.T) {
	c := NewCallbacks(4)
	fired := 0
	c.RegisterFunc(EventCreate, "", func(string, string) { fired++ })
	c.Release()
	if n := c.Dispatch(EventCreate, "/w", "x"); n != 0 || fired != 0 {
		t.Errorf("Expected no dispatch after Release, got %d", n)
	}
}
