package executor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/visorcraft/idlehands/internal/runtime"
)

// ActiveStore persists the single ActiveRuntime record, owned exclusively
// by the Executor (SPEC_FULL.md §3).
type ActiveStore struct {
	path string
}

// NewActiveStore creates a store backed by the active-runtime file at path.
func NewActiveStore(path string) *ActiveStore {
	return &ActiveStore{path: path}
}

// Load reads the active runtime record. A missing file is not an error;
// it returns (nil, nil) meaning "no active runtime".
func (s *ActiveStore) Load() (*runtime.ActiveRuntime, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("activestore: read: %w", err)
	}
	var rec runtime.ActiveRuntime
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("activestore: unmarshal: %w", err)
	}
	return &rec, nil
}

// Save atomically persists the active runtime record (write-temp + rename).
func (s *ActiveStore) Save(rec *runtime.ActiveRuntime) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("activestore: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("activestore: write tmp: %w", err)
	}
	return os.Rename(tmp, s.path)
}
