package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, strips comments, expands ${{ .Env.VAR }} templates,
// unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variable templates (before stripping, since templates are in strings)
	expanded := expandEnvTemplates(string(data))

	// Strip JSONC comments and unmarshal
	var cfg Config
	if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Events.LogLevel == "" {
		cfg.Events.LogLevel = "info"
	}

	if cfg.Runtime.RegistryFile == "" {
		cfg.Runtime.RegistryFile = filepath.Join(IdleHandsPath(), "runtimes.json")
	}
	if cfg.Runtime.ActiveFile == "" {
		cfg.Runtime.ActiveFile = filepath.Join(IdleHandsPath(), "active-runtime.json")
	}
	if cfg.Runtime.HostShellTimeoutSec == 0 {
		cfg.Runtime.HostShellTimeoutSec = 5
	}
	if cfg.Runtime.ProbeTimeoutSec == 0 {
		cfg.Runtime.ProbeTimeoutSec = 8
	}
	if cfg.Runtime.WaitReadyTimeoutSec == 0 {
		cfg.Runtime.WaitReadyTimeoutSec = 60
	}
	if cfg.Runtime.WaitReadyIntervalMs == 0 {
		cfg.Runtime.WaitReadyIntervalMs = 1000
	}

	if cfg.Anton.TotalTimeoutSec == 0 {
		cfg.Anton.TotalTimeoutSec = 7200
	}
	if cfg.Anton.TaskTimeoutSec == 0 {
		cfg.Anton.TaskTimeoutSec = 600
	}
	if cfg.Anton.MaxIdenticalFailures == 0 {
		cfg.Anton.MaxIdenticalFailures = 3
	}
	if cfg.Anton.LockStaleThresholdSec == 0 {
		cfg.Anton.LockStaleThresholdSec = 120
	}
	if cfg.Anton.LockHeartbeatSec == 0 {
		cfg.Anton.LockHeartbeatSec = 5
	}
	if cfg.Anton.Stagnation.ConsecutiveRounds == 0 {
		cfg.Anton.Stagnation.ConsecutiveRounds = 2
	}
	// Auth resolution is deferred to model init time.
}
