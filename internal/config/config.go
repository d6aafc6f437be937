package config

import "time"

// Config is the root configuration for IdleHands.
type Config struct {
	Events  EventsConfig  `json:"events"`
	Models  ModelsConfig  `json:"models"`
	Runtime RuntimeConfig `json:"runtime"`
	Anton   AntonConfig   `json:"anton"`
}

// RuntimeConfig configures the model-runtime orchestrator (hosts/backends/models).
type RuntimeConfig struct {
	// RegistryFile is the path to the hosts/backends/models JSON registry.
	// Defaults to $IDLEHANDS_PATH/runtimes.json.
	RegistryFile string `json:"registry_file,omitempty"`
	// ActiveFile is the path to the single active-runtime record.
	// Defaults to $IDLEHANDS_PATH/active-runtime.json.
	ActiveFile string `json:"active_file,omitempty"`

	// Timeouts (all overridable, spec.md §5 defaults).
	HostShellTimeoutSec   int `json:"host_shell_timeout_sec,omitempty"`   // default 5
	ProbeTimeoutSec       int `json:"probe_timeout_sec,omitempty"`        // default 8
	WaitReadyTimeoutSec   int `json:"wait_ready_timeout_sec,omitempty"`   // default 60
	WaitReadyIntervalMs   int `json:"wait_ready_interval_ms,omitempty"`   // default 1000
}

// AntonConfig configures the autonomous task runner.
type AntonConfig struct {
	TaskFile   string `json:"task_file,omitempty"`
	ProjectDir string `json:"project_dir,omitempty"`

	// Budgets (spec.md §4.8 / §5 defaults).
	MaxIterations          int `json:"max_iterations,omitempty"`
	TotalTimeoutSec        int `json:"total_timeout_sec,omitempty"`        // default 7200
	TaskTimeoutSec         int `json:"task_timeout_sec,omitempty"`         // default 600
	MaxTotalTokens         int `json:"max_total_tokens,omitempty"`
	MaxTotalTasks          int `json:"max_total_tasks,omitempty"`
	MaxRetriesPerTask      int `json:"max_retries_per_task,omitempty"`
	MaxIdenticalFailures   int `json:"max_identical_failures,omitempty"`   // default 3
	MaxPromptTokensPerAttempt int `json:"max_prompt_tokens_per_attempt,omitempty"`

	AllowDirty    bool `json:"allow_dirty,omitempty"`
	Branch        bool `json:"branch,omitempty"`
	DryRun        bool `json:"dry_run,omitempty"`
	AutoCommit    bool `json:"auto_commit,omitempty"`
	RollbackOnFail bool `json:"rollback_on_fail,omitempty"`
	SkipOnFail    bool `json:"skip_on_fail,omitempty"`
	SkipOnBlocked bool `json:"skip_on_blocked,omitempty"`
	Decompose     bool `json:"decompose,omitempty"`
	MaxDecomposeDepth int `json:"max_decompose_depth,omitempty"`

	Commands VerifyCommands `json:"commands,omitempty"`

	Preflight PreflightConfig `json:"preflight,omitempty"`

	// Supplemental: stagnation detection (SPEC_FULL.md §4.8).
	Stagnation StagnationConfig `json:"stagnation,omitempty"`
	// Supplemental: per-phase model routing (SPEC_FULL.md §4.8).
	ModelRouting ModelRoutingConfig `json:"model_routing,omitempty"`

	ToolLoopAutoContinue ToolLoopAutoContinueConfig `json:"tool_loop_auto_continue,omitempty"`

	LockStaleThresholdSec int `json:"lock_stale_threshold_sec,omitempty"` // default 120
	LockHeartbeatSec      int `json:"lock_heartbeat_sec,omitempty"`       // default 5
}

// VerifyCommands holds the build/test/lint commands Anton verifies attempts with.
type VerifyCommands struct {
	Build string `json:"build,omitempty"`
	Test  string `json:"test,omitempty"`
	Lint  string `json:"lint,omitempty"`
}

// PreflightConfig configures the discovery/requirements-review preflight stages.
type PreflightConfig struct {
	Enabled             bool `json:"enabled,omitempty"`
	MaxRetries          int  `json:"max_retries,omitempty"`
	TimeoutSec          int  `json:"timeout_sec,omitempty"`
	MaxIterationsCeiling int `json:"max_iterations_ceiling,omitempty"`
}

// StagnationConfig detects byte-identical diffs across consecutive attempts.
type StagnationConfig struct {
	Enabled           bool `json:"enabled,omitempty"`
	ConsecutiveRounds int  `json:"consecutive_rounds,omitempty"` // default 2
}

// ModelRoutingConfig selects a model per task phase.
type ModelRoutingConfig struct {
	Enabled        bool   `json:"enabled,omitempty"`
	PlanningModel  string `json:"planning_model,omitempty"`
	ExecutionModel string `json:"execution_model,omitempty"`
}

// ToolLoopAutoContinueConfig configures auto-continuation after a tool-loop break.
type ToolLoopAutoContinueConfig struct {
	Enabled    bool `json:"enabled,omitempty"`
	MaxRetries int  `json:"max_retries,omitempty"`
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider (the agent session's ChatClient).
type ProviderConfig struct {
	Driver        string         `json:"driver"` // "anthropic", "openai", "ollama"
	Model         string         `json:"model"`
	BaseURL       string         `json:"base_url,omitempty"`
	Auth          AuthConfig     `json:"auth"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	ContextWindow int            `json:"context_window,omitempty"` // total context window in tokens (0 = driver default)
	Tags          []string       `json:"tags,omitempty"`
	Timeout       Duration       `json:"timeout,omitempty"`
	Options       map[string]any `json:"options,omitempty"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // Direct API key or ${{ .Env.VAR }} template
	Token  string `json:"token,omitempty"`   // OAuth/Bearer token
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size"`
	LogLevel   string `json:"log_level"` // "debug" | "info" | "warn" | "error" (default: "info")
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
