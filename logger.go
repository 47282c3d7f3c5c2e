package atomgo

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with atomgo-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{Logger: slog.New(handler)}
}

// LogBootstrap logs completion of root-runtime bootstrap.
func (l *Logger) LogBootstrap(permanentAtoms int) {
	l.Info("bootstrap completed",
		"permanent_atoms", permanentAtoms,
	)
}

// LogSweepSlice logs one incremental sweep slice.
func (l *Logger) LogSweepSlice(visited, removed int, done bool) {
	l.Debug("sweep slice completed",
		"visited", visited,
		"removed", removed,
		"done", done,
	)
}

// LogSweepAll logs a non-incremental sweep.
func (l *Logger) LogSweepAll(removed int) {
	l.Debug("full sweep completed",
		"removed", removed,
	)
}

// LogSnapshot logs a snapshot write.
func (l *Logger) LogSnapshot(atoms int, err error) {
	if err != nil {
		l.Error("snapshot failed",
			"atoms", atoms,
			"error", err,
		)
	} else {
		l.Info("snapshot written",
			"atoms", atoms,
		)
	}
}

// LogLoad logs a snapshot load.
func (l *Logger) LogLoad(atoms int, err error) {
	if err != nil {
		l.Error("snapshot load failed",
			"error", err,
		)
	} else {
		l.Info("snapshot loaded",
			"atoms", atoms,
		)
	}
}
