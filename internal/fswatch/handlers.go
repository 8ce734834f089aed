package fswatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EventMessage carries the placeholders available to exec and format
// templates.
type EventMessage struct {
	Path  string    // Full path to the file
	Name  string    // Base name of the file
	Dir   string    // Watched directory containing the file
	Event string    // Event label (create, modify, ...)
	Time  time.Time // Dispatch time
}

func newEventMessage(dir, name, event string) EventMessage {
	return EventMessage{
		Path:  filepath.Join(dir, name),
		Name:  name,
		Dir:   dir,
		Event: event,
		Time:  time.Now(),
	}
}

// FormatEvent replaces placeholders in a template with values from msg.
func FormatEvent(template string, msg EventMessage) string {
	str := template

	str = strings.ReplaceAll(str, "{}", msg.Path)
	str = strings.ReplaceAll(str, "{base}", msg.Name)
	str = strings.ReplaceAll(str, "{dir}", msg.Dir)
	str = strings.ReplaceAll(str, "{event}", msg.Event)
	str = strings.ReplaceAll(str, "{time}", msg.Time.Format(time.RFC3339))

	str = strings.ReplaceAll(str, `{""}`, strconv.Quote(msg.Path))
	str = strings.ReplaceAll(str, `{"base"}`, strconv.Quote(msg.Name))
	str = strings.ReplaceAll(str, `{"dir"}`, strconv.Quote(msg.Dir))
	str = strings.ReplaceAll(str, `{"event"}`, strconv.Quote(msg.Event))
	str = strings.ReplaceAll(str, `{"time"}`, strconv.Quote(msg.Time.Format(time.RFC3339)))

	return str
}

// EventLabel names a single event kind, e.g. "create".
func EventLabel(mask EventMask) string {
	for _, e := range eventNames {
		if mask == e.mask {
			return e.name
		}
	}
	return mask.String()
}

// SplitMask returns the individual event kinds of mask in a fixed order.
func SplitMask(mask EventMask) []EventMask {
	var out []EventMask
	for _, e := range eventNames {
		if WatchMask.Has(e.mask) && mask.Has(e.mask) {
			out = append(out, e.mask)
		}
	}
	return out
}

// PrintHandler writes "CALLBACK: <label>: dir/name" lines to w.
func PrintHandler(w io.Writer, label string) Handler {
	return HandlerFunc(func(path, name string) {
		fmt.Fprintf(w, "CALLBACK: %s: %s/%s\n", label, path, name)
	})
}

// LogHandler logs each event at info level.
func LogHandler(logger *zap.Logger, label string) Handler {
	return HandlerFunc(func(path, name string) {
		logger.Info("callback: "+label, zap.String("dir", path), zap.String("name", name))
	})
}

// FormatHandler writes template, expanded for each event, to w.
func FormatHandler(w io.Writer, template, event string) Handler {
	return HandlerFunc(func(path, name string) {
		fmt.Fprintln(w, FormatEvent(template, newEventMessage(path, name, event)))
	})
}

// ExecHandler runs cmdTemplate, expanded for each event. The command runs
// to completion before dispatch continues; its stdout is copied to w and
// failures are logged.
func ExecHandler(ctx context.Context, logger *zap.Logger, w io.Writer, cmdTemplate, event string) Handler {
	return HandlerFunc(func(path, name string) {
		cmd := FormatEvent(cmdTemplate, newEventMessage(path, name, event))
		if err := executeCommand(ctx, cmd, w); err != nil {
			logger.Error("exec callback failed", zap.String("command", cmd), zap.Error(err))
		}
	})
}

// executeCommand executes a command with the given arguments
func executeCommand(ctx context.Context, cmdStr string, w io.Writer) error {
	args := strings.Fields(cmdStr)
	if len(args) == 0 {
		return fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("command error: %s: %w", strings.TrimSpace(stderr.String()), err)
		}
		return err
	}

	if stdout.Len() > 0 {
		_, err = w.Write(stdout.Bytes())
	}
	return err
}
