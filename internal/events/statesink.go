package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateBufferSize is the recommended buffer size for state sink subscriptions.
const StateBufferSize = 1000

// CurrentStateVersion is the state file format version. Files with any other
// version are backed up and ignored.
const CurrentStateVersion = 1

// Status values written when a workflow ends.
const (
	StatusTerminal = "terminal"
	StatusStopped  = "stopped"
)

// State is the persisted attempt state a later run restores from.
type State struct {
	Version         int        `json:"version"`
	WorkflowID      string     `json:"workflow_id,omitempty"`
	Mode            string     `json:"mode,omitempty"`
	Status          string     `json:"status"`
	WrongAttempts   int        `json:"wrong_attempt_count"`
	LockoutDeadline *time.Time `json:"lockout_deadline,omitempty"`
	LastOutcome     string     `json:"last_outcome,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DefaultMinSaveDelay is the minimum time between debounced saves.
const DefaultMinSaveDelay = 5 * time.Second

// StateSink persists State to a JSON file. Attempt and lockout changes are
// written immediately; status-only changes are debounced.
type StateSink struct {
	path     string
	state    *State
	dirty    bool
	mu       sync.Mutex
	done     chan struct{}
	lastSave time.Time
	minDelay time.Duration
	logger   *slog.Logger
}

// NewStateSink creates a StateSink that writes to path.
func NewStateSink(path string) *StateSink {
	return &StateSink{
		path:     path,
		state:    &State{Version: CurrentStateVersion},
		done:     make(chan struct{}),
		minDelay: DefaultMinSaveDelay,
		logger:   slog.Default(),
	}
}

// Start ensures the directory exists, loads existing state and begins
// processing events.
func (s *StateSink) Start(ctx context.Context, events <-chan Event) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load state: %w", err)
	}

	go s.run(ctx, events)
	return nil
}

func (s *StateSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.flushIfDirty()
			return
		case event, ok := <-events:
			if !ok {
				s.flushIfDirty()
				return
			}
			s.handleEvent(event)
		}
	}
}

func (s *StateSink) handleEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	immediate := false

	switch e := event.(type) {
	case *WorkflowStartEvent:
		s.state.WorkflowID = e.WorkflowID
		s.state.Mode = e.Mode
		s.state.WrongAttempts = e.WrongAttempts
		s.dirty = true

	case *StateChangedEvent:
		s.state.Status = e.To
		s.dirty = true

	case *AttemptsChangedEvent:
		s.state.WrongAttempts = e.WrongAttempts
		s.dirty = true
		immediate = true

	case *LockoutStartEvent:
		deadline := e.Deadline
		s.state.LockoutDeadline = &deadline
		s.state.WrongAttempts = e.WrongAttempts
		s.dirty = true
		immediate = true

	case *LockoutEndEvent:
		s.state.LockoutDeadline = nil
		s.dirty = true
		immediate = true

	case *OutcomeEvent:
		s.state.LastOutcome = e.Outcome
		s.dirty = true

	case *WorkflowEndEvent:
		// A torn-down workflow keeps its attempts for the next run.
		s.state.Status = StatusStopped
		if e.Terminal {
			s.state.Status = StatusTerminal
		}
		if e.Outcome != "" {
			s.state.LastOutcome = e.Outcome
		}
		s.dirty = true
		immediate = true
	}

	if s.dirty && (immediate || time.Since(s.lastSave) >= s.minDelay) {
		s.saveUnlocked()
	}
}

func (s *StateSink) saveUnlocked() {
	s.state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		s.logger.Error("state sink: marshal", "error", err)
		return
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		s.logger.Error("state sink: write", "path", tmpPath, "error", err)
		return
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		s.logger.Error("state sink: rename", "path", s.path, "error", err)
		return
	}

	s.dirty = false
	s.lastSave = time.Now()
}

func (s *StateSink) flushIfDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.saveUnlocked()
	}
}

// Stop waits for the run goroutine to finish. Pending changes are flushed
// before it exits.
func (s *StateSink) Stop() error {
	<-s.done
	return nil
}

// Load reads the state file. A corrupt or incompatible file is moved to
// <path>.backup and a fresh state is used.
func (s *StateSink) Load() error {
	state, err := readState(s.path, s.logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return nil
}

// State returns a copy of the current state.
func (s *StateSink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state
}

// Path returns the state file path.
func (s *StateSink) Path() string {
	return s.path
}

// SetMinDelay sets the minimum delay between debounced saves.
func (s *StateSink) SetMinDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minDelay = d
}

// LoadState reads a persisted state file without starting a sink. A missing
// file yields a fresh State and no error.
func LoadState(path string) (State, error) {
	state, err := readState(path, slog.Default())
	if os.IsNotExist(err) {
		return State{Version: CurrentStateVersion}, nil
	}
	if err != nil {
		return State{}, err
	}
	return *state, nil
}

func readState(path string, logger *slog.Logger) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		logBackup(logger, path, "state file corrupted", backupStateFile(path), "error", err)
		return &State{Version: CurrentStateVersion}, nil
	}

	if state.Version != CurrentStateVersion {
		logBackup(logger, path, "incompatible state version", backupStateFile(path),
			"file_version", state.Version,
			"current_version", CurrentStateVersion)
		return &State{Version: CurrentStateVersion}, nil
	}

	return &state, nil
}

func backupStateFile(path string) error {
	return os.Rename(path, path+".backup")
}

func logBackup(logger *slog.Logger, path, msg string, backupErr error, args ...any) {
	args = append([]any{"path", path}, args...)
	if backupErr != nil {
		logger.Warn(msg+", failed to backup", append(args, "backup_error", backupErr)...)
		return
	}
	logger.Warn(msg+", backed up and starting fresh", args...)
}
