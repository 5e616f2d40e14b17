package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/npratt/fingerlock/internal/config"
)

// debugLogName is the file the TUI host logs to, next to the event log.
const debugLogName = "fingerlock-debug.log"

// fileLogger is a logger writing to a rotating file.
type fileLogger struct {
	Logger   *slog.Logger
	Writer   *lumberjack.Logger
	FilePath string
}

// Close closes the log file.
func (f *fileLogger) Close() error {
	if f.Writer != nil {
		return f.Writer.Close()
	}
	return nil
}

// setupTUILogger creates a JSON logger that writes to logDir/fingerlock-debug.log
// instead of stderr, so log output cannot corrupt the TUI. The file is
// rotated by lumberjack with the log_rotation settings.
func setupTUILogger(logDir string, level slog.Leveler, rotation config.LogRotationConfig) (*fileLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(logDir, debugLogName)

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
		Compress:   rotation.Compress,
	}

	return &fileLogger{
		Logger:   newLogger(w, level),
		Writer:   w,
		FilePath: path,
	}, nil
}

// newLogger is the JSON handler every host logs through.
func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
