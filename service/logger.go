package service

import (
	"fmt"
	"log/slog"

	"github.com/flowline-dev/flowline"
)

// slogLogger adapts an *slog.Logger to the engine's Logger interface.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps a structured logger for use with the engine.
func NewSlogLogger(l *slog.Logger) flowline.Logger {
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(format string, args ...interface{}) {
	s.l.Debug(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Info(format string, args ...interface{}) {
	s.l.Info(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Warn(format string, args ...interface{}) {
	s.l.Warn(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Error(format string, args ...interface{}) {
	s.l.Error(fmt.Sprintf(format, args...))
}
