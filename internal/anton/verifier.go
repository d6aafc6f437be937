package anton

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// VerifyInput bundles everything the Verifier needs (spec.md §4.9).
type VerifyInput struct {
	TaskText               string
	ProjectDir             string
	Commands               VerificationCommands
	Diff                   string
	BaselineLintErrorCount int
	CreateVerifySession    VerifySessionFunc
}

// commandRunFunc abstracts running a verification command, overridable in
// tests; production wiring shells out via exec.CommandContext.
type commandRunFunc func(ctx context.Context, projectDir, command string, timeout time.Duration) (output string, exitCode int, err error)

// Verifier runs the L1 build/test/lint checks plus an optional L2 AI pass
// (spec.md §4.9).
type Verifier struct {
	runCommand commandRunFunc
	timeout    time.Duration
}

// NewVerifier constructs a Verifier that shells out via run for each
// configured command, bounded by timeout (default 300s).
func NewVerifier(run commandRunFunc, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Verifier{runCommand: run, timeout: timeout}
}

// Verify runs L1 checks (build/test/lint, each optional) then L2 if
// supplied and all L1 checks pass, per spec.md §4.9 steps 1-5.
func (v *Verifier) Verify(ctx context.Context, in VerifyInput) (*VerificationResult, error) {
	result := &VerificationResult{L1Build: true, L1Test: true, L1Lint: true}
	var outputs []string

	if in.Commands.Build != "" {
		out, exit, err := v.runCommand(ctx, in.ProjectDir, in.Commands.Build, v.timeout)
		if err != nil {
			return nil, fmt.Errorf("anton: run build command: %w", err)
		}
		if exit != 0 {
			result.L1Build = false
			outputs = append(outputs, "build:\n"+out)
		}
	}

	if in.Commands.Test != "" {
		out, exit, err := v.runCommand(ctx, in.ProjectDir, in.Commands.Test, v.timeout)
		if err != nil {
			return nil, fmt.Errorf("anton: run test command: %w", err)
		}
		if exit != 0 {
			result.L1Test = false
			outputs = append(outputs, "test:\n"+out)
		}
	}

	if in.Commands.Lint != "" {
		out, _, err := v.runCommand(ctx, in.ProjectDir, in.Commands.Lint, v.timeout)
		if err != nil {
			return nil, fmt.Errorf("anton: run lint command: %w", err)
		}
		newErrors := countLintErrors(out) - in.BaselineLintErrorCount
		if newErrors > 0 {
			result.L1Lint = false
			outputs = append(outputs, fmt.Sprintf("lint (%d new errors):\n%s", newErrors, filterLintOutput(out)))
		}
	}

	result.CommandOutput = strings.Join(outputs, "\n\n")

	l1Passed := result.L1Build && result.L1Test && result.L1Lint
	if in.CreateVerifySession != nil && l1Passed {
		passed, reason, err := in.CreateVerifySession(ctx, in.TaskText, in.Diff)
		if err != nil {
			return nil, fmt.Errorf("anton: l2 verify session: %w", err)
		}
		result.L2AI = &passed
		result.L2Reason = reason
	}

	result.Passed = l1Passed && (result.L2AI == nil || *result.L2AI)
	result.Summary = summarize(result)
	return result, nil
}

func summarize(r *VerificationResult) string {
	if r.Passed {
		return "verification passed"
	}
	var failed []string
	if !r.L1Build {
		failed = append(failed, "build")
	}
	if !r.L1Test {
		failed = append(failed, "test")
	}
	if !r.L1Lint {
		failed = append(failed, "lint")
	}
	if r.L2AI != nil && !*r.L2AI {
		failed = append(failed, "l2")
	}
	return "verification failed: " + strings.Join(failed, ", ")
}
