package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger emits structured JSON log entries tagged with the service name,
// hostname and the current action. It is passed by value; Action and With
// return derived loggers without touching the parent.
type Logger struct {
	sl *slog.Logger
}

func New(service string) Logger {
	hostname, _ := os.Hostname()
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	return Logger{
		sl: slog.New(h).With("service", service, "hostname", hostname),
	}
}

// Action tags every entry of the derived logger with the given action name.
func (l Logger) Action(action string) Logger {
	return Logger{sl: l.sl.With("action", action)}
}

func (l Logger) With(args ...any) Logger {
	return Logger{sl: l.sl.With(args...)}
}

func (l Logger) WithGroup(name string) Logger {
	return Logger{sl: l.sl.WithGroup(name)}
}

func (l Logger) Debug(msg string, args ...any) {
	l.sl.Debug(msg, args...)
}

func (l Logger) Info(msg string, args ...any) {
	l.sl.Info(msg, args...)
}

func (l Logger) Warn(msg string, args ...any) {
	l.sl.Warn(msg, args...)
}

func (l Logger) Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.sl.Error(msg, args...)
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() Logger {
	return Logger{sl: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
