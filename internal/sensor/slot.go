package sensor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// slotFile is the on-disk form of the credential slot.
type slotFile struct {
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotStore persists whether fingerprint unlock is switched on. A store
// with an empty path keeps the flag in memory only.
type SlotStore struct {
	path    string
	mu      sync.Mutex
	enabled bool
	loaded  bool
}

// NewSlotStore creates a store backed by the JSON file at path.
func NewSlotStore(path string) *SlotStore {
	return &SlotStore{path: path}
}

// Enabled reports the persisted flag. A missing file reads as disabled.
func (s *SlotStore) Enabled() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return false, err
	}
	return s.enabled, nil
}

// SetEnabled updates and persists the flag.
func (s *SlotStore) SetEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = enabled
	s.loaded = true
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create slot directory: %w", err)
	}
	data, err := json.MarshalIndent(slotFile{Enabled: enabled, UpdatedAt: time.Now()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal slot: %w", err)
	}

	// Atomic write: temp file + rename
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write slot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename slot: %w", err)
	}
	return nil
}

func (s *SlotStore) loadLocked() error {
	if s.loaded || s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("read slot: %w", err)
	}
	var f slotFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse slot: %w", err)
	}
	s.enabled = f.Enabled
	s.loaded = true
	return nil
}
