package anton

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/visorcraft/idlehands/internal/agentsession"
	"github.com/visorcraft/idlehands/internal/events"
	"github.com/visorcraft/idlehands/internal/executor"
	"github.com/visorcraft/idlehands/internal/health"
	"github.com/visorcraft/idlehands/internal/hostrunner"
	"github.com/visorcraft/idlehands/internal/lock"
	"github.com/visorcraft/idlehands/internal/planner"
	"github.com/visorcraft/idlehands/internal/runtimestore"
	"github.com/visorcraft/idlehands/internal/taskfile"
)

// RunAnton drives the main task loop to completion: it acquires the Anton
// Lock, walks cfg.TaskFile repeatedly, spawns one agent session per
// attempted task, verifies the resulting diff, and commits or rolls back,
// until a stop condition fires (spec.md §4.8).
func RunAnton(
	ctx context.Context,
	cfg Config,
	progress events.ProgressCallback,
	abortSignal *AbortSignal,
	vault Vault,
	lens Lens,
	createSession CreateSessionFunc,
	verifySession VerifySessionFunc,
) (*RunResult, error) {
	cfg = cfg.WithDefaults()
	if progress == nil {
		progress = events.NoopProgressCallback{}
	}
	if abortSignal == nil {
		abortSignal = NewAbortSignal()
	}
	start := time.Now()

	l, err := lock.Acquire(cfg.lockPath(), cfg.TaskFile, cfg.ProjectDir, lockStaleThreshold)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, &Error{
				Kind:    ErrKindLockHeld,
				Message: "anton lock is already held",
				Remedy:  fmt.Sprintf("wait for the other run to finish, or remove %s if it is stale", cfg.lockPath()),
				Cause:   err,
			}
		}
		return nil, fmt.Errorf("anton: acquire lock: %w", err)
	}
	defer l.Release()

	// A separate ticker from the lock's own heartbeat goroutine: the lock
	// already refreshes its file every 5s on its own, this one only emits
	// progress.onHeartbeat (spec.md §4.8 step 2).
	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				progress.OnHeartbeat()
			case <-heartbeatCtx.Done():
				return
			}
		}
	}()
	defer func() {
		stopHeartbeat()
		<-heartbeatDone
	}()

	tf, err := taskfile.Parse(cfg.TaskFile)
	if err != nil {
		return nil, &Error{Kind: ErrKindLoading, Message: err.Error(), Remedy: "check that the task file exists and parses as markdown"}
	}
	totalTasks := len(tf.Tasks)
	preCompleted := 0
	for _, t := range tf.Tasks {
		if t.Checked {
			preCompleted++
		}
	}

	commands := DetectCommands(cfg.ProjectDir, cfg.Commands)
	runCmd := shellCommandRunner()

	baselineLint := 0
	if commands.Lint != "" {
		out, _, _ := runCmd(ctx, cfg.ProjectDir, commands.Lint, 120*time.Second)
		baselineLint = countLintErrors(out)
	}

	git := newGitRunner(cfg.ProjectDir)
	if !cfg.AllowDirty {
		dirty, err := git.isDirty(ctx)
		if err != nil {
			return nil, fmt.Errorf("anton: check working tree: %w", err)
		}
		if dirty {
			return nil, &Error{
				Kind:    ErrKindValidation,
				Message: "working tree has uncommitted changes",
				Remedy:  "commit or stash local changes first, or pass AllowDirty",
			}
		}
	}

	if cfg.Branch {
		if err := git.createBranch(ctx, fmt.Sprintf("anton-%d", start.Unix())); err != nil {
			return nil, fmt.Errorf("anton: create branch: %w", err)
		}
	}

	if cfg.DryRun {
		progress.OnStage(formatDryRunPlan(taskfile.FindRunnablePendingTasks(tf), commands))
		return &RunResult{
			TotalTasks:   totalTasks,
			PreCompleted: preCompleted,
			Remaining:    len(taskfile.FindRunnablePendingTasks(tf)),
			StopReason:   StopAllDone,
		}, nil
	}

	if cfg.PreflightEnabled && cfg.Model != "" {
		if err := runtimePreflight(ctx, cfg); err != nil {
			return nil, err
		}
	}

	o := &orchestrator{
		cfg:           cfg,
		progress:      progress,
		abortSignal:   abortSignal,
		vault:         vault,
		lens:          lens,
		createSession: createSession,
		verifySession: verifySession,
		verifier:      NewVerifier(runCmd, 300*time.Second),
		git:           git,
		commands:      commands,
		baselineLint:  baselineLint,
		totalTasks:    totalTasks,
		preCompleted:  preCompleted,
		start:         start,

		retryCount:        map[string]int{},
		identicalFailures: map[string]int{},
		lastFailureOutput: map[string]string{},
		lastDiffHash:      map[string]string{},
		finalOutcome:      map[string]AttemptStatus{},
		autoCompletedTasks: map[string]bool{},
		planFiles:          map[string]string{},
	}

	result := o.loop(ctx)
	progress.OnRunComplete(string(result.StopReason), result.Completed, result.Failed, time.Since(start), o.progressSnapshot())
	return result, nil
}

// orchestrator holds the main loop's mutable per-run state.
type orchestrator struct {
	cfg           Config
	progress      events.ProgressCallback
	abortSignal   *AbortSignal
	vault         Vault
	lens          Lens
	createSession CreateSessionFunc
	verifySession VerifySessionFunc
	verifier      *Verifier
	git           *gitRunner
	commands      VerificationCommands
	baselineLint  int
	totalTasks    int
	preCompleted  int
	start         time.Time

	attempts           []Attempt
	retryCount         map[string]int // taskKey -> attempts made
	identicalFailures  map[string]int // taskKey -> consecutive identical failure-reason count
	lastFailureOutput  map[string]string
	lastDiffHash       map[string]string // taskKey -> hash of last produced diff (stagnation detection)
	finalOutcome       map[string]AttemptStatus
	autoCompletedTasks map[string]bool   // taskKey -> auto-completed by discovery, not a real attempt
	planFiles          map[string]string // taskKey -> requirements-review plan, reused across retries
	preflightRecords   []PreflightRecord

	totalTokens int
	iterations  int
}

func (o *orchestrator) progressSnapshot() events.Progress {
	p := events.Progress{TasksTotal: o.totalTasks}
	for _, st := range o.finalOutcome {
		switch st {
		case AttemptPassed:
			p.TasksCompleted++
		case AttemptFailed, AttemptError:
			p.TasksFailed++
		case AttemptBlocked:
			p.TasksSkipped++
		}
	}
	return p
}

// loop runs spec.md §4.8's 13-step main loop until a stop condition fires.
func (o *orchestrator) loop(ctx context.Context) *RunResult {
	for {
		o.iterations++

		if stop, ok := o.checkStopConditions(); ok {
			return o.finish(stop)
		}

		tf, err := taskfile.Parse(o.cfg.TaskFile)
		if err != nil {
			o.attempts = append(o.attempts, Attempt{Status: AttemptError, Error: err.Error(), StartedAt: time.Now(), EndedAt: time.Now()})
			return o.finish(StopFatalError)
		}

		runnable := taskfile.FindRunnablePendingTasks(tf)
		if len(runnable) == 0 {
			return o.finish(StopAllDone)
		}

		task := o.selectTask(runnable)
		if task == nil {
			// every runnable task has exhausted retries or is blocked
			return o.finish(StopAllDone)
		}

		o.runTask(ctx, tf, *task)
	}
}

// checkStopConditions evaluates the stop priority order from spec.md §5:
// abort, max_iterations, total_timeout, token_budget, max_tasks_exceeded.
func (o *orchestrator) checkStopConditions() (StopReason, bool) {
	switch {
	case o.abortSignal.Aborted():
		return StopAbort, true
	case o.iterations > o.cfg.MaxIterations:
		return StopMaxIterations, true
	case time.Since(o.start) >= time.Duration(o.cfg.TotalTimeoutSec)*time.Second:
		return StopTotalTimeout, true
	case o.cfg.MaxTotalTokens > 0 && o.totalTokens >= o.cfg.MaxTotalTokens:
		return StopTokenBudget, true
	case o.totalTasks > o.cfg.MaxTotalTasks:
		return StopMaxTasksExceeded, true
	}
	return "", false
}

// selectTask picks the first runnable task that hasn't exhausted its retry
// or identical-failure budget, in document order. Exhausted tasks are
// recorded as skipped/blocked on first encounter.
func (o *orchestrator) selectTask(runnable []taskfile.Task) *taskfile.Task {
	for i := range runnable {
		t := runnable[i]
		if _, done := o.finalOutcome[t.Key]; done {
			continue
		}
		if o.retryCount[t.Key] >= o.cfg.MaxRetriesPerTask {
			o.markOutcome(t, AttemptBlocked, "max retries exhausted")
			continue
		}
		if o.identicalFailures[t.Key] >= o.cfg.MaxIdenticalFailures {
			o.markOutcome(t, AttemptBlocked, "identical failure repeated")
			continue
		}
		return &t
	}
	return nil
}

func (o *orchestrator) markOutcome(t taskfile.Task, status AttemptStatus, reason string) {
	o.finalOutcome[t.Key] = status
	if status == AttemptBlocked && o.cfg.SkipOnBlocked {
		o.progress.OnTaskSkip(t.Key, t.Text, reason, o.progressSnapshot())
	}
}

// runTask runs one attempt of task: builds the prompt, spawns a session,
// parses its result, verifies, and commits/rolls back (spec.md §4.8
// steps 6-12).
func (o *orchestrator) runTask(ctx context.Context, tf *taskfile.TaskFile, t taskfile.Task) {
	attemptNum := o.retryCount[t.Key] + 1
	model := o.cfg.ModelRouting.modelFor(o.cfg.Decompose && attemptNum == 1, o.cfg.Model)

	if attemptNum == 1 {
		plan, autoCompleted := o.runTaskPreflight(ctx, t, model)
		if autoCompleted {
			return
		}
		o.planFiles[t.Key] = plan
	}
	planFile := o.planFiles[t.Key]

	o.retryCount[t.Key] = attemptNum

	o.progress.OnTaskStart(t.Key, t.Text, attemptNum, o.progressSnapshot())
	attempt := Attempt{TaskKey: t.Key, Attempt: attemptNum, StartedAt: time.Now()}

	retryContext := ""
	if attemptNum > 1 {
		retryContext = buildRetryContext(o.lastOutcome(t.Key), o.lastFailureOutput[t.Key])
	}

	taskCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.TaskTimeoutSec)*time.Second)
	defer cancel()

	agentResult, tokensUsed, err := o.runAttemptWithRecovery(taskCtx, t, model, retryContext, planFile)
	attempt.TokensUsed = tokensUsed
	o.totalTokens += tokensUsed

	if err != nil {
		o.finishAttemptError(&attempt, t, err)
		return
	}

	switch agentResult.Kind {
	case AgentResultBlocked:
		attempt.Status = AttemptBlocked
		attempt.Error = agentResult.Reason
		attempt.EndedAt = time.Now()
		o.attempts = append(o.attempts, attempt)
		o.markOutcome(t, AttemptBlocked, agentResult.Reason)
		o.progress.OnTaskEnd(t.Key, t.Text, attemptNum, string(AttemptBlocked), o.progressSnapshot())

	case AgentResultDecompose:
		o.handleDecompose(&attempt, tf, t, agentResult)

	case AgentResultFailed:
		o.recordFailure(&attempt, t, agentResult.Reason)

	default: // AgentResultPass candidate: verification is the real arbiter
		o.verifyAndFinish(ctx, &attempt, t)
	}
}

// runAttemptWithRecovery spawns a session for one attempt, retrying once
// without consuming the task's retry budget on infra_down/loading errors
// after running runtime recovery — a forced restart for infra_down, a plain
// reconcile for loading, since the model may simply still be warming up
// (spec.md §4.8 step 10, §7).
func (o *orchestrator) runAttemptWithRecovery(ctx context.Context, t taskfile.Task, model, retryContext, planFile string) (AgentResult, int, error) {
	const maxInfraRetries = 1
	for attempt := 0; ; attempt++ {
		result, tokens, err := o.runOneAttempt(ctx, t, model, retryContext, planFile)
		if err == nil {
			return result, tokens, nil
		}

		var antonErr *Error
		if errors.As(err, &antonErr) && attempt < maxInfraRetries {
			if antonErr.Kind == ErrKindInfraDown || antonErr.Kind == ErrKindLoading {
				if recErr := runtimeRecovery(ctx, o.cfg, antonErr.Kind == ErrKindInfraDown); recErr != nil {
					return AgentResult{}, tokens, recErr
				}
				continue
			}
		}
		return AgentResult{}, tokens, err
	}
}

func (o *orchestrator) runOneAttempt(ctx context.Context, t taskfile.Task, model, retryContext, planFile string) (AgentResult, int, error) {
	prompt := buildPrompt(t.Text, strings.Join(t.PhasePath, " > "), planFile, retryContext)

	// Task-attempt sessions always get the full mutating toolset; only the
	// discovery/review preflight sessions (askSlim) use slimTools().
	tools := toolCatalog

	if tokens := estimatePromptTokens(prompt); tokens > o.cfg.MaxPromptTokensPerAttempt {
		trimmed := retryContext
		for level := 1; level <= 3; level++ {
			trimmed = trimRetryContext(retryContext, level)
			prompt = buildPrompt(t.Text, strings.Join(t.PhasePath, " > "), planFile, trimmed)
			if estimatePromptTokens(prompt) <= o.cfg.MaxPromptTokensPerAttempt {
				break
			}
			if level == 3 {
				return AgentResult{}, 0, &Error{Kind: ErrKindPromptBudgetExceeded, Message: "prompt exceeds MaxPromptTokensPerAttempt even with all retry context dropped"}
			}
		}
	}

	session, err := o.createSession(ctx, model, false)
	if err != nil {
		return AgentResult{}, 0, err
	}

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	go o.pollAbort(pollCtx, session)

	toolLoopRetries := 0
	res, err := sessionAsk(ctx, session, prompt, tools, o.cfg.ToolLoopAutoContinue, &toolLoopRetries, o.progress, t.Key)
	if err != nil {
		return AgentResult{}, 0, err
	}

	return parseAgentResult(res.Text), res.Usage.PromptTokens + res.Usage.CompletionTokens, nil
}

// pollAbort cancels session every abortPollInterval once o.abortSignal fires
// (spec.md §4.8 step 9's abort-propagation).
func (o *orchestrator) pollAbort(ctx context.Context, session SessionHandle) {
	ticker := time.NewTicker(abortPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o.abortSignal.Aborted() {
				session.Cancel()
				return
			}
		}
	}
}

// runTaskPreflight runs the optional two-stage preflight pipeline ahead of a
// task's first attempt: discovery first (is this already done?), then
// requirements-review (produce a plan file) if discovery says no (spec.md
// §4.8 step 6). It returns the plan file to thread into buildPrompt, and
// whether the task was short-circuited as auto-completed.
func (o *orchestrator) runTaskPreflight(ctx context.Context, t taskfile.Task, model string) (string, bool) {
	if !o.cfg.TaskPreflight.Enabled {
		return "", false
	}
	excerpt := strings.Join(t.PhasePath, " > ")

	done := o.runDiscoveryStage(ctx, t, model, excerpt)
	o.preflightRecords = append(o.preflightRecords, PreflightRecord{
		TaskKey:       t.Key,
		Stage:         PreflightDiscovery,
		AutoCompleted: done,
	})
	if done {
		if err := taskfile.MarkTaskChecked(o.cfg.TaskFile, t.Key); err == nil {
			_ = taskfile.AutoCompleteAncestors(o.cfg.TaskFile, t.Key)
		}
		o.autoCompletedTasks[t.Key] = true
		o.markOutcome(t, AttemptPassed, "")
		o.progress.OnTaskEnd(t.Key, t.Text, 0, string(AttemptPassed), o.progressSnapshot())
		return "", true
	}

	plan := o.runReviewStage(ctx, t, model, excerpt)
	o.preflightRecords = append(o.preflightRecords, PreflightRecord{
		TaskKey:  t.Key,
		Stage:    PreflightRequirementsReview,
		PlanFile: plan,
	})
	return plan, false
}

// runDiscoveryStage asks a slim session whether t is already done, retrying
// up to cfg.TaskPreflight.MaxRetries times on a session/ask error before
// degrading to "not done" — a stuck discovery stage must never block the
// task outright.
func (o *orchestrator) runDiscoveryStage(ctx context.Context, t taskfile.Task, model, excerpt string) bool {
	cfg := o.cfg.TaskPreflight
	prompt := buildDiscoveryPrompt(t.Text, excerpt)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		stageCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.DiscoveryTimeoutSec)*time.Second)
		res, err := o.askSlim(stageCtx, model, prompt)
		cancel()
		if err != nil {
			continue
		}
		return parseDiscovery(res.Text)
	}
	return false
}

// runReviewStage asks a slim session to produce a plan file, retrying up to
// cfg.TaskPreflight.MaxRetries times before degrading to an empty plan.
func (o *orchestrator) runReviewStage(ctx context.Context, t taskfile.Task, model, excerpt string) string {
	cfg := o.cfg.TaskPreflight
	prompt := buildReviewPrompt(t.Text, excerpt)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		stageCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ReviewTimeoutSec)*time.Second)
		res, err := o.askSlim(stageCtx, model, prompt)
		cancel()
		if err != nil {
			continue
		}
		return parseReviewPlan(res.Text)
	}
	return ""
}

// askSlim spawns a slim (non-mutating) session for one preflight stage ask.
func (o *orchestrator) askSlim(ctx context.Context, model, prompt string) (*agentsession.AskResult, error) {
	session, err := o.createSession(ctx, model, true)
	if err != nil {
		return nil, err
	}
	msg := agentsession.TextMessage(agentsession.RoleUser, prompt)
	return session.Ask(ctx, msg, slimTools(), agentsession.Hooks{})
}

func (o *orchestrator) handleDecompose(attempt *Attempt, tf *taskfile.TaskFile, t taskfile.Task, agentResult AgentResult) {
	attempt.Status = AttemptDecomposed
	attempt.EndedAt = time.Now()
	o.attempts = append(o.attempts, *attempt)

	depth := t.Depth
	if !o.cfg.Decompose || depth >= o.cfg.MaxDecomposeDepth || o.totalTasks+len(agentResult.SubTaskTexts) > o.cfg.MaxTotalTasks {
		o.markOutcome(t, AttemptBlocked, "decomposition requested but disabled or over depth/task budget")
		o.progress.OnTaskEnd(t.Key, t.Text, attempt.Attempt, string(AttemptBlocked), o.progressSnapshot())
		return
	}

	added, err := taskfile.InsertSubTasks(o.cfg.TaskFile, t.Key, agentResult.SubTaskTexts)
	if err != nil {
		o.markOutcome(t, AttemptBlocked, "failed to insert subtasks: "+err.Error())
		return
	}
	o.totalTasks += len(added)
	o.progress.OnTaskEnd(t.Key, t.Text, attempt.Attempt, string(AttemptDecomposed), o.progressSnapshot())
	// The parent task is not selected again: it now has children, so it is no
	// longer a runnable leaf. Once all its children are checked,
	// AutoCompleteAncestors checks it too.
}

func (o *orchestrator) recordFailure(attempt *Attempt, t taskfile.Task, reason string) {
	attempt.Status = AttemptFailed
	attempt.Error = reason
	attempt.EndedAt = time.Now()
	o.attempts = append(o.attempts, *attempt)

	o.trackIdenticalFailure(t.Key, reason)
	o.lastFailureOutput[t.Key] = reason

	if o.cfg.RollbackOnFail {
		_ = o.git.rollback(context.Background(), true)
	}

	o.progress.OnTaskEnd(t.Key, t.Text, attempt.Attempt, string(AttemptFailed), o.progressSnapshot())

	if o.retryCount[t.Key] >= o.cfg.MaxRetriesPerTask {
		o.markOutcome(t, AttemptFailed, reason)
	}
}

func (o *orchestrator) verifyAndFinish(ctx context.Context, attempt *Attempt, t taskfile.Task) {
	diff, err := o.git.diff(ctx)
	if err != nil {
		o.finishAttemptError(attempt, t, fmt.Errorf("anton: read diff: %w", err))
		return
	}

	if o.cfg.StagnationDetection.Enabled {
		h := hashDiff(diff)
		if h == o.lastDiffHash[t.Key] {
			o.identicalFailures[t.Key]++
		}
		o.lastDiffHash[t.Key] = h
	}

	vr, err := o.verifier.Verify(ctx, VerifyInput{
		TaskText:               t.Text,
		ProjectDir:             o.cfg.ProjectDir,
		Commands:               o.commands,
		Diff:                   diff,
		BaselineLintErrorCount: o.baselineLint,
		CreateVerifySession:    o.verifySession,
	})
	if err != nil {
		o.finishAttemptError(attempt, t, fmt.Errorf("anton: verify: %w", err))
		return
	}

	attempt.Verification = vr
	o.progress.OnVerification(t.Key, "L1", vr.L1Build && vr.L1Test && vr.L1Lint, vr.Summary)
	if vr.L2AI != nil {
		o.progress.OnVerification(t.Key, "L2", *vr.L2AI, vr.L2Reason)
	}

	if vr.Passed {
		attempt.Status = AttemptPassed
		attempt.EndedAt = time.Now()
		o.attempts = append(o.attempts, *attempt)

		if o.cfg.AutoCommit {
			if err := o.git.commitAll(ctx, fmt.Sprintf("anton: %s", t.Text)); err != nil {
				o.finishAttemptError(attempt, t, fmt.Errorf("anton: commit: %w", err))
				return
			}
		}
		if err := taskfile.MarkTaskChecked(o.cfg.TaskFile, t.Key); err != nil {
			o.finishAttemptError(attempt, t, fmt.Errorf("anton: mark task checked: %w", err))
			return
		}
		_ = taskfile.AutoCompleteAncestors(o.cfg.TaskFile, t.Key)

		o.markOutcome(t, AttemptPassed, "")
		delete(o.identicalFailures, t.Key)
		o.noteOutcome(ctx, t.Key, "passed: "+t.Text)
		o.progress.OnTaskEnd(t.Key, t.Text, attempt.Attempt, string(AttemptPassed), o.progressSnapshot())
		return
	}

	o.recordFailure(attempt, t, vr.Summary+"\n"+o.maybeSummarize(ctx, "verify", vr.CommandOutput))
	o.noteOutcome(ctx, t.Key, "failed: "+vr.Summary)
}

func (o *orchestrator) finishAttemptError(attempt *Attempt, t taskfile.Task, err error) {
	attempt.Status = AttemptError
	attempt.Error = err.Error()
	attempt.EndedAt = time.Now()
	o.attempts = append(o.attempts, *attempt)
	o.trackIdenticalFailure(t.Key, err.Error())
	o.lastFailureOutput[t.Key] = err.Error()
	o.progress.OnTaskEnd(t.Key, t.Text, attempt.Attempt, string(AttemptError), o.progressSnapshot())
	if o.retryCount[t.Key] >= o.cfg.MaxRetriesPerTask {
		o.markOutcome(t, AttemptError, err.Error())
	}
}

func (o *orchestrator) trackIdenticalFailure(taskKey, reason string) {
	if o.lastFailureOutput[taskKey] == reason {
		o.identicalFailures[taskKey]++
	} else {
		o.identicalFailures[taskKey] = 1
	}
}

// noteOutcome records an attempt's outcome in the Vault, if one was
// supplied, so a later task's prompt-construction stage can search for it
// (spec.md §6 Vault.note).
func (o *orchestrator) noteOutcome(ctx context.Context, taskKey, value string) {
	if o.vault == nil {
		return
	}
	_, _ = o.vault.Note(ctx, taskKey, value)
}

// maybeSummarize shrinks long tool output through the Lens before it's
// carried into a retry prompt, if a Lens was supplied; otherwise it passes
// output through untouched (spec.md §6 Lens.summarizeToolOutput).
func (o *orchestrator) maybeSummarize(ctx context.Context, tool, output string) string {
	const longOutputThreshold = 4000
	if o.lens == nil || len(output) <= longOutputThreshold {
		return output
	}
	summary, err := o.lens.SummarizeToolOutput(ctx, tool, "", output)
	if err != nil {
		return output
	}
	return summary
}

func (o *orchestrator) lastOutcome(taskKey string) AttemptStatus {
	for i := len(o.attempts) - 1; i >= 0; i-- {
		if o.attempts[i].TaskKey == taskKey {
			return o.attempts[i].Status
		}
	}
	return AttemptFailed
}

// finish computes the final RunResult and releases the lock via the
// caller's deferred l.Release().
func (o *orchestrator) finish(reason StopReason) *RunResult {
	completed, failed, skipped := 0, 0, 0
	for key, st := range o.finalOutcome {
		switch st {
		case AttemptPassed:
			if !o.autoCompletedTasks[key] {
				completed++
			}
		case AttemptFailed, AttemptError:
			failed++
		case AttemptBlocked:
			skipped++
		}
	}
	autoCompleted := len(o.autoCompletedTasks)

	if failed > 0 && !o.cfg.SkipOnFail && reason == StopAllDone {
		reason = StopFatalError
	}

	commits := 0
	if o.cfg.AutoCommit {
		for _, a := range o.attempts {
			if a.Status == AttemptPassed {
				commits++
			}
		}
	}

	remaining := o.totalTasks - o.preCompleted - completed - autoCompleted - failed - skipped
	if remaining < 0 {
		remaining = 0
	}

	return &RunResult{
		TotalTasks:       o.totalTasks,
		PreCompleted:     o.preCompleted,
		Completed:        completed,
		AutoCompleted:    autoCompleted,
		Skipped:          skipped,
		Failed:           failed,
		Remaining:        remaining,
		Attempts:         o.attempts,
		PreflightRecords: o.preflightRecords,
		TotalDurationMs:  time.Since(o.start).Milliseconds(),
		TotalTokens:      o.totalTokens,
		TotalCommits:     commits,
		CompletedAll:     reason == StopAllDone && failed == 0 && skipped == 0,
		StopReason:       reason,
	}
}

// shellCommandRunner returns a commandRunFunc that runs command through the
// system shell, bounded by timeout — the same bounded os/exec idiom as
// gitRunner.run and hostrunner.RunOnHost, generalized to arbitrary
// build/test/lint commands instead of a fixed git/ssh argv.
func shellCommandRunner() commandRunFunc {
	return func(ctx context.Context, projectDir, command string, timeout time.Duration) (string, int, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = projectDir
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		err := cmd.Run()
		exitCode := 0
		var exitErr *exec.ExitError
		switch {
		case err == nil:
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			return out.String(), -1, fmt.Errorf("anton: run %q: %w", command, err)
		}
		return out.String(), exitCode, nil
	}
}

func estimatePromptTokens(prompt string) int {
	const charsPerToken = 4
	return len(prompt) / charsPerToken
}

func hashDiff(diff string) string {
	sum := sha256.Sum256([]byte(diff))
	return hex.EncodeToString(sum[:])
}

func formatDryRunPlan(runnable []taskfile.Task, commands VerificationCommands) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dry run: %d runnable task(s)\n", len(runnable))
	for _, t := range runnable {
		fmt.Fprintf(&b, "  - %s\n", t.Text)
	}
	fmt.Fprintf(&b, "Commands: build=%q test=%q lint=%q\n", commands.Build, commands.Test, commands.Lint)
	return b.String()
}

// runtimeReconcile loads the runtime registry and active-runtime state and
// asks the planner/executor to bring cfg.Model's runtime to the desired
// state, shared by the startup preflight and mid-run recovery call sites
// (spec.md §4.4, §4.8 step 10).
func runtimeReconcile(ctx context.Context, cfg Config, forceRestart bool) error {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	store := runtimestore.New(cfg.registryPath())
	reg, err := store.Load()
	if err != nil {
		return fmt.Errorf("anton: load runtime registry: %w", err)
	}

	activeStore := executor.NewActiveStore(cfg.activeRuntimePath())
	active, err := activeStore.Load()
	if err != nil {
		return fmt.Errorf("anton: load active runtime: %w", err)
	}

	plan, err := planner.Plan(planner.Request{ModelID: cfg.Model, ForceRestart: forceRestart}, reg, active)
	if err != nil {
		return &Error{Kind: ErrKindInfraDown, Message: err.Error(), Remedy: "check the runtime registry for model " + cfg.Model}
	}

	exe := executor.New(hostrunner.New(), health.New(nil), activeStore)
	if _, err := exe.Execute(ctx, plan, reg, nil); err != nil {
		return &Error{Kind: ErrKindInfraDown, Message: err.Error(), Remedy: "inspect the runtime logs for model " + cfg.Model}
	}
	return nil
}

// runtimePreflight asks the runtime orchestrator to ensure cfg.Model is
// already serving before Anton starts, failing the whole run if it can't be
// brought up (spec.md §4.8 startup step 9).
func runtimePreflight(ctx context.Context, cfg Config) error {
	return runtimeReconcile(ctx, cfg, false)
}

// runtimeRecovery re-runs the runtime planner/executor mid-run after an
// attempt error classified infra_down/loading: forceRestart is set for
// infra_down, left unset for loading since the model may simply still be
// warming up (spec.md §4.8 step 10, error table at spec.md §7).
func runtimeRecovery(ctx context.Context, cfg Config, forceRestart bool) error {
	if cfg.Model == "" {
		return nil
	}
	return runtimeReconcile(ctx, cfg, forceRestart)
}
