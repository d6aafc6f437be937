// Package runtimestore implements the Runtime Store: loading, validating,
// and atomically persisting the hosts/backends/models registry, plus
// secret redaction for display (SPEC_FULL.md §4.3).
package runtimestore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/visorcraft/idlehands/internal/runtime"
)

const redactedPlaceholder = "***"

// CurrentSchemaVersion is written by Bootstrap and expected on Load.
const CurrentSchemaVersion = 1

// Store persists a runtime.Registry to a single JSON file.
type Store struct {
	path string
}

// New creates a Store backed by the registry file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Bootstrap creates an empty registry at path if no file exists yet.
func (s *Store) Bootstrap() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("runtimestore: bootstrap stat: %w", err)
	}

	empty := runtime.Registry{SchemaVersion: CurrentSchemaVersion}
	return s.Save(&empty)
}

// Load reads and validates the registry.
func (s *Store) Load() (*runtime.Registry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("runtimestore: read: %w", err)
	}

	var reg runtime.Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("runtimestore: unmarshal: %w", err)
	}

	if err := Validate(&reg); err != nil {
		return nil, fmt.Errorf("runtimestore: validate: %w", err)
	}

	return &reg, nil
}

// Save persists the registry atomically (write-temp + rename).
func (s *Store) Save(reg *runtime.Registry) error {
	if reg.SchemaVersion == 0 {
		reg.SchemaVersion = CurrentSchemaVersion
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("runtimestore: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("runtimestore: write tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("runtimestore: rename: %w", err)
	}
	return nil
}

// Validate enforces id uniqueness and that host/backend references in
// policies resolve to a declared entity.
func Validate(reg *runtime.Registry) error {
	hostIDs := map[string]bool{}
	for _, h := range reg.Hosts {
		if hostIDs[h.ID] {
			return fmt.Errorf("duplicate host id: %s", h.ID)
		}
		hostIDs[h.ID] = true
		if h.Transport == runtime.TransportSSH && h.Connection.Host == "" {
			return fmt.Errorf("host %s: transport=ssh requires connection.host", h.ID)
		}
	}

	backendIDs := map[string]bool{}
	for _, b := range reg.Backends {
		if backendIDs[b.ID] {
			return fmt.Errorf("duplicate backend id: %s", b.ID)
		}
		backendIDs[b.ID] = true
		if !b.HostFilters.Any {
			for _, id := range b.HostFilters.IDs {
				if !hostIDs[id] {
					return fmt.Errorf("backend %s: hostFilters references unknown host %s", b.ID, id)
				}
			}
		}
		if b.ApplyCmd != "" && b.RollbackCmd == "" {
			return fmt.Errorf("backend %s: applyCmd set without rollbackCmd", b.ID)
		}
	}

	modelIDs := map[string]bool{}
	for _, m := range reg.Models {
		if modelIDs[m.ID] {
			return fmt.Errorf("duplicate model id: %s", m.ID)
		}
		modelIDs[m.ID] = true

		if !m.HostPolicy.Any {
			for _, id := range m.HostPolicy.IDs {
				if !hostIDs[id] {
					return fmt.Errorf("model %s: hostPolicy references unknown host %s", m.ID, id)
				}
			}
		}
		if !m.BackendPolicy.Any {
			for _, id := range m.BackendPolicy.IDs {
				if !backendIDs[id] {
					return fmt.Errorf("model %s: backendPolicy references unknown backend %s", m.ID, id)
				}
			}
		}
	}

	return nil
}

// Redact returns a copy of the registry with connection passwords and key
// paths masked for display. Hosts, Backends and Models are copied into new
// slices; maps and slices held inside individual entries are shared with reg.
func Redact(reg *runtime.Registry) *runtime.Registry {
	out := *reg
	out.Hosts = make([]runtime.Host, len(reg.Hosts))
	for i, h := range reg.Hosts {
		out.Hosts[i] = h
		if h.Connection.Password != "" {
			out.Hosts[i].Connection.Password = redactedPlaceholder
		}
		if h.Connection.KeyPath != "" {
			out.Hosts[i].Connection.KeyPath = redactedPlaceholder
		}
	}
	out.Backends = append([]runtime.Backend(nil), reg.Backends...)
	out.Models = append([]runtime.Model(nil), reg.Models...)
	return &out
}
