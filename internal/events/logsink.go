package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink consumes events from the router.
type Sink interface {
	Start(ctx context.Context, events <-chan Event) error
	Stop() error
}

// Rotation bounds the size and age of the JSONL event log.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// LogSink writes events to a JSON lines file. The file is rotated by size,
// and an existing non-empty log is rotated aside on start so each run begins
// with a fresh file for tail -f.
type LogSink struct {
	path     string
	rotation Rotation
	writer   *lumberjack.Logger
	encoder  *json.Encoder
	mu       sync.Mutex
	done     chan struct{}
}

// NewLogSink creates a LogSink that writes to path.
func NewLogSink(path string, rotation Rotation) *LogSink {
	return &LogSink{
		path:     path,
		rotation: rotation,
		done:     make(chan struct{}),
	}
}

// Start opens the log and processes events until ctx is canceled or the
// channel is closed.
func (s *LogSink) Start(ctx context.Context, events <-chan Event) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	w := &lumberjack.Logger{
		Filename:   s.path,
		MaxSize:    s.rotation.MaxSizeMB,
		MaxBackups: s.rotation.MaxBackups,
		MaxAge:     s.rotation.MaxAgeDays,
		Compress:   s.rotation.Compress,
	}

	if info, err := os.Stat(s.path); err == nil && info.Size() > 0 {
		if err := w.Rotate(); err != nil {
			return fmt.Errorf("rotate log file: %w", err)
		}
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stat log file: %w", err)
	}

	s.mu.Lock()
	s.writer = w
	s.encoder = json.NewEncoder(w)
	s.mu.Unlock()

	go s.run(ctx, events)
	return nil
}

func (s *LogSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.write(event)
		}
	}
}

func (s *LogSink) write(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encoder == nil {
		return
	}
	if err := s.encoder.Encode(event); err != nil {
		slog.Warn("log sink: failed to write event", "event_type", event.Type(), "error", err)
	}
}

// Stop waits for the sink to drain and closes the log.
func (s *LogSink) Stop() error {
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	s.encoder = nil
	return err
}

// Path returns the log file path.
func (s *LogSink) Path() string {
	return s.path
}
