package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// SignalError is returned by Signals.Run when a termination signal arrives.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("received signal %v", e.Signal)
}

// Signals turns process signals into shutdown requests. SIGTERM and SIGINT
// end Run with a *SignalError; SIGHUP is logged and otherwise ignored, since
// nothing is reloadable at runtime.
type Signals struct {
	ch     chan os.Signal
	logger *zap.Logger
}

// InstallShutdownHandlers starts capturing SIGTERM, SIGINT and SIGHUP.
func InstallShutdownHandlers(logger *zap.Logger) *Signals {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Signals{ch: make(chan os.Signal, 1), logger: logger}
	signal.Notify(s.ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	return s
}

// Run waits for a signal or for ctx to end. It returns nil when ctx ends.
func (s *Signals) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-s.ch:
			if sig == syscall.SIGHUP {
				s.logger.Info("received SIGHUP, nothing to reload")
				continue
			}
			s.logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			return &SignalError{Signal: sig}
		}
	}
}

// Stop releases the signal handlers.
func (s *Signals) Stop() {
	signal.Stop(s.ch)
}
