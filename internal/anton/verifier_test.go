package anton

import (
	"context"
	"testing"
	"time"
)

func fakeCommandRunner(results map[string]struct {
	out  string
	exit int
}) commandRunFunc {
	return func(ctx context.Context, projectDir, command string, timeout time.Duration) (string, int, error) {
		r := results[command]
		return r.out, r.exit, nil
	}
}

func TestVerifyAllPassNoL2(t *testing.T) {
	run := fakeCommandRunner(map[string]struct {
		out  string
		exit int
	}{
		"go build ./...": {out: "", exit: 0},
		"go test ./...":  {out: "ok", exit: 0},
		"go vet ./...":   {out: "", exit: 0},
	})
	v := NewVerifier(run, 0)

	result, err := v.Verify(context.Background(), VerifyInput{
		Commands: VerificationCommands{Build: "go build ./...", Test: "go test ./...", Lint: "go vet ./..."},
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestVerifyBuildFailureFailsVerification(t *testing.T) {
	run := fakeCommandRunner(map[string]struct {
		out  string
		exit int
	}{
		"go build ./...": {out: "syntax error", exit: 1},
		"go test ./...":  {out: "ok", exit: 0},
	})
	v := NewVerifier(run, 0)

	result, err := v.Verify(context.Background(), VerifyInput{
		Commands: VerificationCommands{Build: "go build ./...", Test: "go test ./..."},
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Passed || result.L1Build {
		t.Fatalf("expected build failure, got %+v", result)
	}
}

func TestVerifyLintBaselineSubtraction(t *testing.T) {
	lintOutput := "a.go:1:1: error one\na.go:2:1: error two\na.go:3:1: error three\n"
	run := fakeCommandRunner(map[string]struct {
		out  string
		exit int
	}{
		"golangci-lint run ./...": {out: lintOutput, exit: 1},
	})
	v := NewVerifier(run, 0)

	result, err := v.Verify(context.Background(), VerifyInput{
		Commands:               VerificationCommands{Lint: "golangci-lint run ./..."},
		BaselineLintErrorCount: 3,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.L1Lint {
		t.Fatal("expected lint to pass once baseline fully subtracted")
	}

	run2 := fakeCommandRunner(map[string]struct {
		out  string
		exit int
	}{
		"golangci-lint run ./...": {out: lintOutput, exit: 1},
	})
	v2 := NewVerifier(run2, 0)
	result2, err := v2.Verify(context.Background(), VerifyInput{
		Commands:               VerificationCommands{Lint: "golangci-lint run ./..."},
		BaselineLintErrorCount: 1,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result2.L1Lint {
		t.Fatal("expected lint to fail with new errors beyond baseline")
	}
}

func TestVerifyL2RunsOnlyWhenL1Passes(t *testing.T) {
	run := fakeCommandRunner(map[string]struct {
		out  string
		exit int
	}{
		"go build ./...": {out: "fail", exit: 1},
	})
	v := NewVerifier(run, 0)

	l2Called := false
	verifySession := func(ctx context.Context, taskText, diff string) (bool, string, error) {
		l2Called = true
		return true, "", nil
	}

	_, err := v.Verify(context.Background(), VerifyInput{
		Commands:            VerificationCommands{Build: "go build ./..."},
		CreateVerifySession: verifySession,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if l2Called {
		t.Fatal("L2 should not run when L1 fails")
	}
}

func TestVerifyL2FailureFailsOverallResult(t *testing.T) {
	run := fakeCommandRunner(nil)
	v := NewVerifier(run, 0)

	verifySession := func(ctx context.Context, taskText, diff string) (bool, string, error) {
		return false, "doesn't address the task", nil
	}

	result, err := v.Verify(context.Background(), VerifyInput{CreateVerifySession: verifySession})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Passed {
		t.Fatal("expected overall failure when L2 rejects")
	}
	if result.L2AI == nil || *result.L2AI {
		t.Fatal("expected L2AI to be false")
	}
}
