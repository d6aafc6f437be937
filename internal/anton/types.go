package anton

import "time"

// AttemptStatus is the tagged outcome of a single task attempt
// (SPEC_FULL.md §9: ad-hoc variant records become exhaustive sum types).
type AttemptStatus string

const (
	AttemptPassed     AttemptStatus = "passed"
	AttemptFailed     AttemptStatus = "failed"
	AttemptBlocked    AttemptStatus = "blocked"
	AttemptDecomposed AttemptStatus = "decomposed"
	AttemptError      AttemptStatus = "error"
)

// StopReason is the stable stop-condition enum at the process boundary
// (spec.md §6).
type StopReason string

const (
	StopAllDone          StopReason = "all_done"
	StopAbort            StopReason = "abort"
	StopMaxIterations    StopReason = "max_iterations"
	StopTotalTimeout     StopReason = "total_timeout"
	StopTokenBudget      StopReason = "token_budget"
	StopMaxTasksExceeded StopReason = "max_tasks_exceeded"
	StopFatalError       StopReason = "fatal_error"
)

// VerificationResult is the Anton Verifier's output (spec.md §4.9).
type VerificationResult struct {
	Passed        bool
	Summary       string
	L1Build       bool
	L1Test        bool
	L1Lint        bool
	L2AI          *bool
	L2Reason      string
	CommandOutput string
}

// Attempt is one recorded attempt at a task (spec.md §4.8 step 12).
type Attempt struct {
	TaskKey      string
	Attempt      int
	Status       AttemptStatus
	Error        string
	Verification *VerificationResult
	TokensUsed   int
	StartedAt    time.Time
	EndedAt      time.Time
}

// PreflightStage distinguishes the two stages of the per-task preflight
// pipeline (spec.md §4.8 step 6).
type PreflightStage string

const (
	PreflightDiscovery       PreflightStage = "discovery"
	PreflightRequirementsReview PreflightStage = "requirements_review"
)

// PreflightRecord is one task's preflight outcome, surfaced in RunResult so
// a caller can see which tasks were auto-completed by discovery versus
// actually attempted (spec.md §4.8 step 6, §6 RunResult.preflightRecords).
type PreflightRecord struct {
	TaskKey        string
	Stage          PreflightStage
	AutoCompleted  bool
	PlanFile       string
	Reason         string
}

// RunResult is Anton's public return value (spec.md §4.8 "Public contract").
type RunResult struct {
	TotalTasks       int
	PreCompleted     int
	Completed        int
	AutoCompleted    int
	Skipped          int
	Failed           int
	Remaining        int
	Attempts         []Attempt
	PreflightRecords []PreflightRecord
	TotalDurationMs  int64
	TotalTokens      int
	TotalCommits     int
	CompletedAll     bool
	StopReason       StopReason
}

// AgentResult is the structured parse of a session's terminal output
// (spec.md §4.8 step 11).
type AgentResult struct {
	Kind         AgentResultKind
	Reason       string   // set for blocked/failed
	SubTaskTexts []string // set for decompose
}

// AgentResultKind is the closed set a finished session's output parses into.
type AgentResultKind string

const (
	AgentResultPass      AgentResultKind = "pass"
	AgentResultDecompose AgentResultKind = "decompose"
	AgentResultBlocked   AgentResultKind = "blocked"
	AgentResultFailed    AgentResultKind = "failed"
)
