package fswatch

import "go.uber.org/zap/zapcore"

// Stats holds dispatcher counters. They are written only by the Run
// goroutine; read them after Run returns.
type Stats struct {
	Reads          int64 // Successful channel reads
	Records        int64 // Records decoded
	Nameless       int64 // Records skipped for carrying no name
	UnknownHandles int64 // Records dropped for an unregistered handle
	Filtered       int64 // Records rejected by the global filter
	Dispatched     int64 // Records passed to the callback registry
	Callbacks      int64 // Handler invocations
	WatchesAdded   int64 // Watches added while running
}

// MarshalLogObject lets Stats be logged with zap.Object.
func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("reads", s.Reads)
	enc.AddInt64("records", s.Records)
	enc.AddInt64("nameless", s.Nameless)
	enc.AddInt64("unknown_handles", s.UnknownHandles)
	enc.AddInt64("filtered", s.Filtered)
	enc.AddInt64("dispatched", s.Dispatched)
	enc.AddInt64("callbacks", s.Callbacks)
	enc.AddInt64("watches_added", s.WatchesAdded)
	return nil
}
