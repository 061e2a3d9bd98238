package featureprobe

import (
	"fmt"
	"io"
	"log/slog"
)

// noopLogger discards everything; logging is opt-in via WithLogger.
func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// restySlogLogger implements a [resty.Logger] using a [slog.Logger].
type restySlogLogger struct {
	logger *slog.Logger
}

func (s restySlogLogger) Errorf(format string, v ...interface{}) {
	s.logger.Error(fmt.Sprintf(format, v...))
}

func (s restySlogLogger) Warnf(format string, v ...interface{}) {
	s.logger.Warn(fmt.Sprintf(format, v...))
}

func (s restySlogLogger) Debugf(format string, v ...interface{}) {
	s.logger.Debug(fmt.Sprintf(format, v...))
}
