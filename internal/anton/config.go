// Package anton implements Anton: the autonomous task runner that walks a
// markdown task file, drives an agent session per task, verifies the
// resulting diff, and commits or rolls back (SPEC_FULL.md §4.8-§4.10).
package anton

import (
	"path/filepath"
	"time"
)

// ToolLoopAutoContinueConfig bounds how many times a broken tool loop is
// nudged with a standardized continuation prompt before the attempt fails
// (spec.md §4.8 step 10).
type ToolLoopAutoContinueConfig struct {
	Enabled    bool
	MaxRetries int
}

// StagnationConfig cuts a task's retries short when consecutive attempts
// produce a byte-identical diff (SPEC_FULL.md §4.8, grounded on the pack's
// alekspetrov-pilot executor config). When Enabled, each attempt whose diff
// hash equals the previous attempt's adds one to the task's identical-failure
// count, so the task is blocked once MaxIdenticalFailures is reached.
// IdenticalDiffsThreshold is defaulted but not read by the orchestrator.
// Disabled by default so default behavior matches spec.md exactly.
type StagnationConfig struct {
	Enabled                 bool
	IdenticalDiffsThreshold int
}

// ModelRoutingConfig optionally overrides the session model per task by a
// naive complexity heuristic: decompose-eligible tasks are "planning" work,
// leaf tasks are "execution" work (SPEC_FULL.md §4.8). Disabled by default —
// the single configured model is used for everything.
type ModelRoutingConfig struct {
	Enabled        bool
	PlanningModel  string
	ExecutionModel string
}

func (m ModelRoutingConfig) modelFor(isDecomposeEligible bool, fallback string) string {
	if !m.Enabled {
		return fallback
	}
	if isDecomposeEligible && m.PlanningModel != "" {
		return m.PlanningModel
	}
	if !isDecomposeEligible && m.ExecutionModel != "" {
		return m.ExecutionModel
	}
	return fallback
}

// VerificationCommands are the build/test/lint commands run by the Verifier
// (SPEC_FULL.md §4.9). Empty fields are skipped.
type VerificationCommands struct {
	Build string
	Test  string
	Lint  string
}

// TaskPreflightConfig gates the per-task discovery/requirements-review
// pipeline run before a task's first attempt (spec.md §4.8 step 6). Each
// stage gets its own slim (tool-mutation-free) session, timeout, and retry
// budget; a stage that keeps failing degrades gracefully into a normal
// attempt rather than blocking the task outright.
type TaskPreflightConfig struct {
	Enabled             bool
	DiscoveryTimeoutSec int
	ReviewTimeoutSec    int
	MaxRetries          int
}

func (c TaskPreflightConfig) withDefaults() TaskPreflightConfig {
	if c.DiscoveryTimeoutSec == 0 {
		c.DiscoveryTimeoutSec = 120
	}
	if c.ReviewTimeoutSec == 0 {
		c.ReviewTimeoutSec = 180
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 1
	}
	return c
}

// Config holds every orchestrator knob named in spec.md §4.8, plus the
// additive StagnationDetection/ModelRouting supplements from SPEC_FULL.md.
type Config struct {
	ProjectDir string
	TaskFile   string
	StateDir   string // conventional state directory for lock/registry/active-runtime files
	Model      string

	AllowDirty bool
	Branch     bool
	DryRun     bool

	MaxRetriesPerTask    int
	MaxIdenticalFailures int
	SkipOnFail           bool
	SkipOnBlocked        bool

	MaxIterations   int
	TotalTimeoutSec int
	MaxTotalTokens  int
	MaxTotalTasks   int
	TaskTimeoutSec  int

	MaxPromptTokensPerAttempt int

	Decompose         bool
	MaxDecomposeDepth int

	RollbackOnFail bool
	AutoCommit     bool

	PreflightEnabled bool
	TaskPreflight    TaskPreflightConfig

	ToolLoopAutoContinue ToolLoopAutoContinueConfig

	Commands VerificationCommands

	StagnationDetection StagnationConfig
	ModelRouting        ModelRoutingConfig
}

// WithDefaults returns a copy of cfg with zero-valued fields replaced by
// spec.md §5's stated defaults.
func (cfg Config) WithDefaults() Config {
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(cfg.ProjectDir, ".idlehands")
	}
	if cfg.MaxRetriesPerTask == 0 {
		cfg.MaxRetriesPerTask = 3
	}
	if cfg.MaxIdenticalFailures == 0 {
		cfg.MaxIdenticalFailures = 3
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 1000
	}
	if cfg.TotalTimeoutSec == 0 {
		cfg.TotalTimeoutSec = 7200
	}
	if cfg.TaskTimeoutSec == 0 {
		cfg.TaskTimeoutSec = 600
	}
	if cfg.MaxTotalTasks == 0 {
		cfg.MaxTotalTasks = 500
	}
	if cfg.MaxPromptTokensPerAttempt == 0 {
		cfg.MaxPromptTokensPerAttempt = 32000
	}
	if cfg.MaxDecomposeDepth == 0 {
		cfg.MaxDecomposeDepth = 3
	}
	if cfg.ToolLoopAutoContinue.MaxRetries == 0 {
		cfg.ToolLoopAutoContinue.MaxRetries = 2
	}
	if cfg.StagnationDetection.IdenticalDiffsThreshold == 0 {
		cfg.StagnationDetection.IdenticalDiffsThreshold = 3
	}
	cfg.TaskPreflight = cfg.TaskPreflight.withDefaults()
	return cfg
}

const abortPollInterval = 250 * time.Millisecond
const heartbeatInterval = 5 * time.Second
const lockStaleThreshold = 120 * time.Second

func (cfg Config) lockPath() string          { return filepath.Join(cfg.StateDir, "anton.lock.json") }
func (cfg Config) registryPath() string      { return filepath.Join(cfg.StateDir, "runtimes.json") }
func (cfg Config) activeRuntimePath() string { return filepath.Join(cfg.StateDir, "active-runtime.json") }
