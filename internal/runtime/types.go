// Package runtime holds the declarative data model shared by the Runtime
// Store, Planner, Executor, and Health Prober: hosts, backends, models, and
// the single active-runtime record (SPEC_FULL.md §3).
package runtime

import "time"

// Transport is how commands reach a Host.
type Transport string

const (
	TransportLocal Transport = "local"
	TransportSSH   Transport = "ssh"
)

// Connection holds the remote-shell coordinates for an ssh-transport host.
type Connection struct {
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
	User    string `json:"user,omitempty"`
	KeyPath string `json:"keyPath,omitempty"`
	// Password is never used for ssh key-based auth in practice but is kept
	// for parity with the redaction contract (secrets masked on display).
	Password string `json:"password,omitempty"`
}

// Capabilities describes what a host can run.
type Capabilities struct {
	GPUTags  []string `json:"gpuTags,omitempty"`
	Backends []string `json:"backends,omitempty"`
}

// HealthCheck is the host-level liveness check (distinct from the
// endpoint-level Health Prober probes).
type HealthCheck struct {
	CheckCmd   string `json:"checkCmd,omitempty"`
	TimeoutSec int    `json:"timeoutSec,omitempty"`
}

// ModelControl holds the commands used to stop/cleanup a running model on a host.
type ModelControl struct {
	StopCmd    string `json:"stopCmd,omitempty"`
	CleanupCmd string `json:"cleanupCmd,omitempty"`
}

// Host is a machine (local or ssh-reachable) that can run an inference server.
type Host struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"displayName,omitempty"`
	Enabled      bool         `json:"enabled"`
	Transport    Transport    `json:"transport"`
	Connection   Connection   `json:"connection,omitempty"`
	Capabilities Capabilities `json:"capabilities,omitempty"`
	Health       HealthCheck  `json:"health,omitempty"`
	ModelControl ModelControl `json:"modelControl,omitempty"`
}

// BackendType is a GPU/compute toolchain.
type BackendType string

const (
	BackendVulkan BackendType = "vulkan"
	BackendROCm   BackendType = "rocm"
	BackendCUDA   BackendType = "cuda"
	BackendMetal  BackendType = "metal"
	BackendCPU    BackendType = "cpu"
	BackendCustom BackendType = "custom"
)

// Backend is a GPU/compute toolchain plus the commands that activate it.
type Backend struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"displayName,omitempty"`
	Enabled     bool              `json:"enabled"`
	Type        BackendType       `json:"type"`
	HostFilters Selector          `json:"hostFilters"`
	ApplyCmd    string            `json:"applyCmd,omitempty"`
	VerifyCmd   string            `json:"verifyCmd,omitempty"`
	RollbackCmd string            `json:"rollbackCmd,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Args        map[string]string `json:"args,omitempty"`
}

// rpcHelperHostIDs returns the host ids declared as RPC helper endpoints in
// the backend's args (key "rpc_helper_hosts", a comma-separated list), if any.
func (b Backend) rpcHelperHostIDs() []string {
	raw, ok := b.Args["rpc_helper_hosts"]
	if !ok || raw == "" {
		return nil
	}
	var ids []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				ids = append(ids, raw[start:i])
			}
			start = i + 1
		}
	}
	return ids
}

// LaunchConfig holds the model's start/probe command templates.
type LaunchConfig struct {
	StartCmd        string `json:"startCmd"`
	ProbeCmd        string `json:"probeCmd,omitempty"`
	ProbeTimeoutSec int    `json:"probeTimeoutSec,omitempty"`
	ProbeIntervalMs int    `json:"probeIntervalMs,omitempty"`
}

// RuntimeDefaults holds model-level defaults consumed at plan time.
type RuntimeDefaults struct {
	Port int `json:"port"`
}

// Model is a weights source plus the commands needed to serve it.
type Model struct {
	ID              string          `json:"id"`
	DisplayName     string          `json:"displayName,omitempty"`
	Enabled         bool            `json:"enabled"`
	Source          string          `json:"source"`
	HostPolicy      Selector        `json:"hostPolicy"`
	BackendPolicy   Selector        `json:"backendPolicy"`
	Launch          LaunchConfig    `json:"launch"`
	RuntimeDefaults RuntimeDefaults `json:"runtimeDefaults"`
	ChatTemplate    string          `json:"chatTemplate,omitempty"`
	SplitPolicy     string          `json:"splitPolicy,omitempty"`
}

// ActiveRuntime is the single persistent record of the currently running
// inference server, owned exclusively by the Executor.
type ActiveRuntime struct {
	ModelID   string    `json:"modelId"`
	BackendID string    `json:"backendId,omitempty"`
	HostIDs   []string  `json:"hostIds"`
	Healthy   bool      `json:"healthy"`
	Endpoint  string    `json:"endpoint,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// Registry is the on-disk declarative configuration for hosts/backends/models.
type Registry struct {
	SchemaVersion int       `json:"schemaVersion"`
	Hosts         []Host    `json:"hosts"`
	Backends      []Backend `json:"backends"`
	Models        []Model   `json:"models"`
}

// FindHost returns the host with the given id, if any.
func (r *Registry) FindHost(id string) (Host, bool) {
	for _, h := range r.Hosts {
		if h.ID == id {
			return h, true
		}
	}
	return Host{}, false
}

// FindBackend returns the backend with the given id, if any.
func (r *Registry) FindBackend(id string) (Backend, bool) {
	for _, b := range r.Backends {
		if b.ID == id {
			return b, true
		}
	}
	return Backend{}, false
}

// FindModel returns the model with the given id, if any.
func (r *Registry) FindModel(id string) (Model, bool) {
	for _, m := range r.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}
