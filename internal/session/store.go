// Package session persists the single durable record describing the
// currently active streaming session.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"stream/internal/proc"
	"stream/internal/remote"
)

// State is the durable session record. Its presence asserts that a
// session was started and has not been cleanly stopped; the PID is
// re-probed rather than trusted, so a stale record is recoverable.
type State struct {
	Profile   string         `json:"profile"`
	StartedAt time.Time      `json:"started_at"`
	LocalPID  int            `json:"local_pid"`
	LogPath   string         `json:"log_path"`
	Remote    *remote.Handle `json:"remote"`
}

// LocalRunning probes whether the recorded local process is alive.
func (s *State) LocalRunning() bool {
	return proc.Alive(s.LocalPID)
}

// Store reads and writes the session record. A sidecar flock guards
// load-check-write sequences against concurrent CLI invocations.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore creates a store for the record at path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the record location.
func (s *Store) Path() string {
	return s.path
}

// Lock takes the cross-process lock. Callers hold it for the duration
// of a state transition (start, stop) and release via Unlock.
func (s *Store) Lock() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock session state: %w", err)
	}
	return nil
}

// TryLock takes the cross-process lock without blocking. Returns
// false when another process holds it.
func (s *Store) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return false, fmt.Errorf("create state directory: %w", err)
	}
	locked, err := s.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock session state: %w", err)
	}
	return locked, nil
}

// Unlock releases the cross-process lock.
func (s *Store) Unlock() error {
	return s.lock.Unlock()
}

// Load returns the persisted state, or nil when no record exists.
func (s *Store) Load() (*State, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return &state, nil
}

// Write persists state, creating the state directory when needed.
func (s *Store) Write(state *State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize session state: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the record. Clearing an absent record is a no-op.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}
