package fswatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type call struct {
	Path, Name string
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *fakeChannel) {
	t.Helper()
	ch := newFakeChannel()
	e, err := New(ch, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e, ch
}

func TestEngineFiltersByPattern(t *testing.T) {
	e, ch := newTestEngine(t, Options{Patterns: []string{"*.log"}})

	var calls []call
	if _, err := e.RegisterFunc(EventCreate, "", func(path, name string) {
		calls = append(calls, call{path, name})
	}); err != nil {
		t.Fatalf("RegisterFunc failed: %v", err)
	}
	if err := e.Start("/tmp/w"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	wd := ch.handleOf("/tmp/w")
	ch.push(
		RawEvent{Handle: wd, Mask: EventCreate, Name: "a.log"},
		RawEvent{Handle: wd, Mask: EventCreate, Name: "b.txt"},
	)
	ch.stop()

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []call{{"/tmp/w", "a.log"}}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("callbacks mismatch (-want +got):\n%s", diff)
	}
	if got := e.Stats().Filtered; got != 1 {
		t.Errorf("Expected 1 filtered record, got %d", got)
	}
}

func TestEngineRecursiveNewDirectory(t *testing.T) {
	root := t.TempDir()
	e, ch := newTestEngine(t, Options{Recursive: true})
	if err := e.Start(root); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := e.Registry().Len(); got != 1 {
		t.Fatalf("Expected 1 watch after start, got %d", got)
	}

	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	ch.push(RawEvent{Handle: ch.handleOf(root), Mask: EventCreate | EventIsDir, Name: "sub"})
	ch.stop()

	// Inspect the registry before Run tears it down.
	var resolved string
	var watches int
	e.RegisterFunc(EventCreate, "", func(path, name string) {
		watches = e.Registry().Len()
		resolved, _ = e.Registry().Resolve(ch.handleOf(sub))
	})

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if watches != 2 {
		t.Errorf("Expected registry to grow to 2, got %d", watches)
	}
	if resolved != sub {
		t.Errorf("Expected new handle to resolve to %s, got %q", sub, resolved)
	}
	if got := e.Stats().WatchesAdded; got != 1 {
		t.Errorf("Expected 1 watch added, got %d", got)
	}
}

func TestEngineRecursiveNewDirectoryWithChildren(t *testing.T) {
	root := t.TempDir()
	e, ch := newTestEngine(t, Options{Recursive: true})
	if err := e.Start(root); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// mkdir -p races the watch: the children exist before the create is read.
	if err := os.MkdirAll(filepath.Join(root, "a", "b", "c"), 0755); err != nil {
		t.Fatalf("Failed to create directories: %v", err)
	}
	ch.push(RawEvent{Handle: ch.handleOf(root), Mask: EventCreate | EventIsDir, Name: "a"})
	ch.stop()

	var watches int
	e.RegisterFunc(EventCreate, "", func(path, name string) {
		watches = e.Registry().Len()
	})
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if watches != 4 {
		t.Errorf("Expected 4 watches, got %d", watches)
	}
}

func TestEngineNonRecursiveIgnoresNewDirectory(t *testing.T) {
	root := t.TempDir()
	e, ch := newTestEngine(t, Options{})
	if err := e.Start(root); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	os.Mkdir(filepath.Join(root, "sub"), 0755)

	var watches int
	var fired int
	e.RegisterFunc(EventCreate, "", func(path, name string) {
		fired++
		watches = e.Registry().Len()
	})
	ch.push(RawEvent{Handle: ch.handleOf(root), Mask: EventCreate | EventIsDir, Name: "sub"})
	ch.stop()

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if fired != 1 {
		t.Errorf("Expected directory create to be dispatched once, got %d", fired)
	}
	if watches != 1 {
		t.Errorf("Expected 1 watch, got %d", watches)
	}
}

func TestEnginePreservesOrder(t *testing.T) {
	e, ch := newTestEngine(t, Options{})
	var got []string
	e.RegisterFunc(WatchMask, "", func(path, name string) {
		got = append(got, name)
	})
	if err := e.Start("/w"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	wd := ch.handleOf("/w")
	ch.push(
		RawEvent{Handle: wd, Mask: EventCreate, Name: "1"},
		RawEvent{Handle: wd, Mask: EventModify, Name: "2"},
	)
	ch.push(
		RawEvent{Handle: wd, Mask: EventMovedFrom, Cookie: 7, Name: "3"},
		RawEvent{Handle: wd, Mask: EventMovedTo, Cookie: 7, Name: "4"},
		RawEvent{Handle: wd, Mask: EventDelete, Name: "5"},
	)
	ch.stop()

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "4", "5"}, got); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}
	if s := e.Stats(); s.Reads != 2 || s.Records != 5 {
		t.Errorf("Expected 2 reads and 5 records, got %d and %d", s.Reads, s.Records)
	}
}

func TestEngineSkipsUnknownAndNameless(t *testing.T) {
	e, ch := newTestEngine(t, Options{})
	fired := 0
	e.RegisterFunc(WatchMask, "", func(path, name string) { fired++ })
	if err := e.Start("/w"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ch.push(
		RawEvent{Handle: 99, Mask: EventCreate, Name: "x"},
		RawEvent{Handle: ch.handleOf("/w"), Mask: EventIgnored},
		RawEvent{Handle: ch.handleOf("/w"), Mask: EventCreate, Name: "y"},
	)
	ch.stop()

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if fired != 1 {
		t.Errorf("Expected 1 callback, got %d", fired)
	}
	s := e.Stats()
	if s.UnknownHandles != 1 {
		t.Errorf("Expected 1 unknown handle, got %d", s.UnknownHandles)
	}
	if s.Nameless != 1 {
		t.Errorf("Expected 1 nameless record, got %d", s.Nameless)
	}
}

func TestEngineOverflowIsFatal(t *testing.T) {
	e, ch := newTestEngine(t, Options{})
	fired := 0
	e.RegisterFunc(WatchMask, "", func(path, name string) { fired++ })
	if err := e.Start("/w"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ch.push(
		RawEvent{Handle: -1, Mask: EventOverflow},
		RawEvent{Handle: ch.handleOf("/w"), Mask: EventCreate, Name: "late"},
	)

	err := e.Run(context.Background())
	if !errors.Is(err, ErrQueueOverflow) {
		t.Fatalf("Expected ErrQueueOverflow, got %v", err)
	}
	if fired != 0 {
		t.Errorf("Expected no callbacks after overflow, got %d", fired)
	}
	if e.State() != StateTerminated {
		t.Errorf("Expected terminated state, got %s", e.State())
	}
}

func TestEngineReadErrorTearsDown(t *testing.T) {
	e, ch := newTestEngine(t, Options{})
	if err := e.Start("/w"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cause := errors.New("bad file descriptor")
	ch.reads <- fakeRead{err: cause}

	err := e.Run(context.Background())
	if !errors.Is(err, ErrChannelRead) || !errors.Is(err, cause) {
		t.Fatalf("Expected ErrChannelRead wrapping cause, got %v", err)
	}
	if !ch.closed {
		t.Error("Expected channel to be closed")
	}
	if diff := cmp.Diff([]int{1}, ch.removed); diff != "" {
		t.Errorf("removed watches mismatch (-want +got):\n%s", diff)
	}
	if e.Registry().Len() != 0 || e.Callbacks().Len() != 0 {
		t.Error("Expected registries to be emptied")
	}
}

func TestEngineShortRecord(t *testing.T) {
	e, ch := newTestEngine(t, Options{})
	if err := e.Start("/w"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	rec := AppendRecord(nil, RawEvent{Handle: 1, Mask: EventCreate, Name: "truncated"})
	ch.reads <- fakeRead{data: rec[:HeaderSize+2]}

	if err := e.Run(context.Background()); !errors.Is(err, ErrShortRecord) {
		t.Fatalf("Expected ErrShortRecord, got %v", err)
	}
}

func TestEngineCancel(t *testing.T) {
	e, ch := newTestEngine(t, Options{})
	if err := e.Start("/w"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if e.State() != StateRunning {
		t.Errorf("Expected running state, got %s", e.State())
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if e.State() != StateTerminated {
		t.Errorf("Expected terminated state, got %s", e.State())
	}
	if !ch.closed {
		t.Error("Expected channel to be closed")
	}
}

func TestEngineStartFailure(t *testing.T) {
	e, ch := newTestEngine(t, Options{})
	ch.fail["/missing"] = os.ErrNotExist
	if err := e.Start("/missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
}

func TestEngineRegisterAfterRun(t *testing.T) {
	e, ch := newTestEngine(t, Options{})
	if err := e.Start("/w"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ch.stop()
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, err := e.RegisterFunc(EventCreate, "", func(string, string) {}); err == nil {
		t.Error("Expected error registering after Run")
	}
	if err := e.Run(context.Background()); err == nil {
		t.Error("Expected error running twice")
	}
	if err := e.Close(); err != nil {
		t.Errorf("Expected second Close to succeed, got %v", err)
	}
}

func TestEngineRejectsBadPatterns(t *testing.T) {
	if _, err := New(newFakeChannel(), Options{Patterns: []string{"[a-"}}); !errors.Is(err, ErrBadPattern) {
		t.Errorf("Expected ErrBadPattern, got %v", err)
	}
	if _, err := New(nil, Options{}); err == nil {
		t.Error("Expected error for nil channel")
	}
}

func TestEngineBufferSize(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{"zero", 0, ReadBufferSize},
		{"header only", HeaderSize + 4, ReadBufferSize},
		{"one byte short", MinBufferSize - 1, ReadBufferSize},
		{"minimum", MinBufferSize, MinBufferSize},
		{"large", 1 << 16, 1 << 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(newFakeChannel(), Options{BufferSize: tt.size})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if len(e.buf) != tt.want {
				t.Errorf("Expected buffer of %d bytes, got %d", tt.want, len(e.buf))
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateInitializing, "initializing"},
		{StateRunning, "running"},
		{StateTerminated, "terminated"},
		{State(9), "State(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int32(tt.state), got, tt.want)
		}
	}
}
