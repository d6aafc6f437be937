// Package executor implements the Executor: driving a Plan to completion
// against real hosts, enforcing per-step timeouts, rolling back a failed
// backend apply, and persisting the active-runtime record on success
// (SPEC_FULL.md §4.5).
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/visorcraft/idlehands/internal/health"
	"github.com/visorcraft/idlehands/internal/hostrunner"
	"github.com/visorcraft/idlehands/internal/runtime"
)

// Failure taxonomy surfaced at the process boundary (spec.md §4.5).
const (
	FailurePlanError       = "plan-error"
	FailureStepExecFailed  = "step-exec-failed"
	FailureProbeTimeout    = "probe-timeout"
	FailureRollbackApplied = "rollback-applied"
	FailureCancelled       = "cancelled"
)

// ErrCancelled is returned when the caller's context is cancelled mid-plan.
var ErrCancelled = errors.New("executor: cancelled")

// StepPhase is the lifecycle phase of a single plan step.
type StepPhase string

const (
	PhaseStart StepPhase = "start"
	PhaseDone  StepPhase = "done"
	PhaseError StepPhase = "error"
)

// StepCallback is invoked at each step lifecycle transition.
type StepCallback func(step runtime.PlanStep, phase StepPhase, detail string)

// Executor drives plans to completion.
type Executor struct {
	runner      *hostrunner.Runner
	prober      *health.Prober
	activeStore *ActiveStore
}

// New creates an Executor.
func New(runner *hostrunner.Runner, prober *health.Prober, activeStore *ActiveStore) *Executor {
	return &Executor{runner: runner, prober: prober, activeStore: activeStore}
}

// Execute runs plan's steps strictly in order. On success it persists the
// new ActiveRuntime and returns it; on any failure the prior ActiveRuntime
// is left untouched and an error identifying the failure kind is returned.
func (e *Executor) Execute(ctx context.Context, plan *runtime.Plan, reg *runtime.Registry, onStep StepCallback) (*runtime.ActiveRuntime, error) {
	if onStep == nil {
		onStep = func(runtime.PlanStep, StepPhase, string) {}
	}

	for _, step := range plan.Steps {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", FailureCancelled, ErrCancelled)
		}

		onStep(step, PhaseStart, "")

		if err := e.runStep(ctx, step, plan, reg); err != nil {
			onStep(step, PhaseError, err.Error())

			if step.Kind == "apply_backend" && step.RollbackCmd != "" {
				e.rollback(ctx, step, reg)
				return nil, fmt.Errorf("%s: %w (%s)", FailureRollbackApplied, err, FailureStepExecFailed)
			}
			return nil, fmt.Errorf("%s: %w", FailureStepExecFailed, err)
		}

		onStep(step, PhaseDone, "")
	}

	active := &runtime.ActiveRuntime{
		ModelID:   plan.Model.ID,
		HostIDs:   hostIDsOf(plan.Hosts),
		Healthy:   true,
		StartedAt: timeNow(),
	}
	if plan.Backend != nil {
		active.BackendID = plan.Backend.ID
	}
	if len(plan.Hosts) > 0 {
		active.Endpoint = endpointFor(plan.Hosts[0], plan.Model.RuntimeDefaults.Port)
	}

	if e.activeStore != nil {
		if err := e.activeStore.Save(active); err != nil {
			return nil, fmt.Errorf("%s: persist active runtime: %w", FailureStepExecFailed, err)
		}
	}

	return active, nil
}

func (e *Executor) runStep(ctx context.Context, step runtime.PlanStep, plan *runtime.Plan, reg *runtime.Registry) error {
	host, ok := reg.FindHost(step.HostID)
	if !ok {
		return fmt.Errorf("unknown host %q", step.HostID)
	}

	if step.Kind == "probe_health" {
		return e.probeUntilReady(ctx, host, plan, step)
	}

	timeout := time.Duration(step.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	res := e.runner.RunOnHost(ctx, step.Command, host, timeout)
	if res.ExitCode == hostrunner.TimeoutExitCode {
		return fmt.Errorf("command timed out after %s: %s", timeout, res.Stderr)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("exit %d: %s", res.ExitCode, res.Stderr)
	}
	return nil
}

func (e *Executor) probeUntilReady(ctx context.Context, host runtime.Host, plan *runtime.Plan, step runtime.PlanStep) error {
	timeout := time.Duration(step.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	interval := time.Duration(step.ProbeIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	res := health.WaitForModelsReady(ctx, e.prober, hostAddress(host), plan.Model.RuntimeDefaults.Port, health.WaitOptions{
		Timeout:         timeout,
		Interval:        interval,
		ExpectedModelID: plan.Model.ID,
	})
	if !res.OK {
		return fmt.Errorf("%s: %s", FailureProbeTimeout, res.Reason)
	}
	return nil
}

func (e *Executor) rollback(ctx context.Context, step runtime.PlanStep, reg *runtime.Registry) {
	host, ok := reg.FindHost(step.HostID)
	if !ok {
		return
	}
	// Best effort: rollback failures are not surfaced beyond the wrapped error.
	e.runner.RunOnHost(ctx, step.RollbackCmd, host, 30*time.Second)
}

func hostIDsOf(hosts []runtime.Host) []string {
	ids := make([]string, len(hosts))
	for i, h := range hosts {
		ids[i] = h.ID
	}
	return ids
}

func hostAddress(h runtime.Host) string {
	if h.Transport == runtime.TransportLocal || h.Connection.Host == "" {
		return "127.0.0.1"
	}
	return h.Connection.Host
}

// endpointFor derives the OpenAI-compatible base URL, enforcing a trailing /v1.
func endpointFor(h runtime.Host, port int) string {
	return fmt.Sprintf("http://%s:%d/v1", hostAddress(h), port)
}

var timeNowFunc = time.Now

func timeNow() time.Time { return timeNowFunc() }
