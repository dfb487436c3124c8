package throttle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File permissions for the throttle record.
const (
	FileMode = 0600
	DirMode  = 0700
)

// MemoryStore keeps the record in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore returns a MemoryStore holding state.
func NewMemoryStore(state State) *MemoryStore {
	return &MemoryStore{state: state}
}

// Load returns the stored state.
func (m *MemoryStore) Load(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

// Save replaces the stored state.
func (m *MemoryStore) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

// FileStore keeps the record as a small JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the record. A missing or corrupted file yields the zero state.
func (f *FileStore) Load(_ context.Context) (State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("throttle: failed to read state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, nil
	}
	return state, nil
}

// Save writes the record through a temporary file and rename so a crash
// never leaves a truncated file behind.
func (f *FileStore) Save(_ context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("throttle: failed to marshal state: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return fmt.Errorf("throttle: failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".throttle-*")
	if err != nil {
		return fmt.Errorf("throttle: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("throttle: failed to write state: %w", err)
	}
	if err := tmp.Chmod(FileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("throttle: failed to set state permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("throttle: failed to close state file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("throttle: failed to replace state file: %w", err)
	}
	return nil
}
