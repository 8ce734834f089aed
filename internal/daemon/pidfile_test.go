package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPidFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fswatcher.pid")

	if err := WritePidFile(path); err != nil {
		t.Fatalf("WritePidFile failed: %v", err)
	}
	pid, err := ReadPidFile(path)
	if err != nil {
		t.Fatalf("ReadPidFile failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("Expected pid %d, got %d", os.Getpid(), pid)
	}

	if err := RemovePidFile(path); err != nil {
		t.Fatalf("RemovePidFile failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected pid file to be gone, got %v", err)
	}
	// Removing twice is fine.
	if err := RemovePidFile(path); err != nil {
		t.Errorf("RemovePidFile on missing file failed: %v", err)
	}
}

func TestPidFileErrors(t *testing.T) {
	dir := t.TempDir()

	if err := WritePidFile(filepath.Join(dir, "missing", "x.pid")); err == nil {
		t.Error("Expected error writing into missing directory")
	}

	garbage := filepath.Join(dir, "garbage.pid")
	os.WriteFile(garbage, []byte("not a pid\n"), 0644)
	if _, err := ReadPidFile(garbage); err == nil {
		t.Error("Expected parse error")
	}
}

func TestIsChild(t *testing.T) {
	t.Setenv(EnvMarker, "")
	if IsChild() {
		t.Error("Expected parent process")
	}
	t.Setenv(EnvMarker, "1")
	if !IsChild() {
		t.Error("Expected child process")
	}
}
