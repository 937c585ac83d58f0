package logging

import (
	"context"
	"log/slog"
)

// Sink receives audit messages for child process output and exit codes.
// Implementations must be safe for concurrent use: stdout and stderr lines
// are delivered from separate goroutines.
type Sink interface {
	Log(level Level, message string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(level Level, message string)

// Log implements Sink.
func (f SinkFunc) Log(level Level, message string) {
	f(level, message)
}

// SlogSink forwards sink messages to a slog logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps logger. A nil logger uses slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Log implements Sink.
func (s *SlogSink) Log(level Level, message string) {
	s.logger.Log(context.Background(), level.Slog(), message)
}
