//go:build windows || plan9

package fswatch

import (
	"errors"

	"go.uber.org/zap"
)

// NewSyslogLogger is unavailable on this platform.
func NewSyslogLogger(tag string, level LogLevel) (*zap.Logger, error) {
	return nil, errors.New("fswatch: syslog is not supported on this platform")
}
