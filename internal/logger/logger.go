// Package logger provides the process-wide structured logger: a single
// slog.Logger writing JSON to stdout, plus component-scoped children so a
// log record from the retrieval pipeline carries which stage emitted it.
package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// Init builds the process-wide JSON logger at the given level ("debug",
// "info", "warn", or "error"; anything else falls back to info). Safe to
// call more than once — only the first call takes effect, so whichever
// entry point runs first (an explicit cfg.Logging.Level, or Get's info
// default) wins.
func Init(level string) {
	once.Do(func() {
		defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(level),
		}))
		slog.SetDefault(defaultLogger)
	})
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the process logger, defaulting Init to info level if nothing
// has configured it yet.
func Get() *slog.Logger {
	Init("info")
	return defaultLogger
}

// Component returns a logger scoped to name: every record it emits carries
// a "component" field, so corpus/rag/ingestion log lines are distinguishable
// without each call site repeating the field by hand.
func Component(name string) *slog.Logger {
	return Get().With("component", name)
}

// Info logs an informational message on the unscoped process logger.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Warn logs a warning message on the unscoped process logger.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs an error message on the unscoped process logger.
func Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	Get().Error(msg, args...)
}

// Debug logs a debug message on the unscoped process logger.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}
