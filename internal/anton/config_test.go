package anton

import "testing"

func TestWithDefaultsFillsZeroValues(t *testing.T) {
	cfg := Config{ProjectDir: "/repo"}.WithDefaults()

	if cfg.StateDir != "/repo/.idlehands" {
		t.Fatalf("unexpected StateDir: %q", cfg.StateDir)
	}
	if cfg.MaxRetriesPerTask != 3 {
		t.Fatalf("unexpected MaxRetriesPerTask: %d", cfg.MaxRetriesPerTask)
	}
	if cfg.MaxIterations != 1000 {
		t.Fatalf("unexpected MaxIterations: %d", cfg.MaxIterations)
	}
	if cfg.TotalTimeoutSec != 7200 {
		t.Fatalf("unexpected TotalTimeoutSec: %d", cfg.TotalTimeoutSec)
	}
	if cfg.ToolLoopAutoContinue.MaxRetries != 2 {
		t.Fatalf("unexpected ToolLoopAutoContinue.MaxRetries: %d", cfg.ToolLoopAutoContinue.MaxRetries)
	}
	if cfg.StagnationDetection.IdenticalDiffsThreshold != 3 {
		t.Fatalf("unexpected StagnationDetection.IdenticalDiffsThreshold: %d", cfg.StagnationDetection.IdenticalDiffsThreshold)
	}
}

func TestWithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{ProjectDir: "/repo", StateDir: "/custom", MaxRetriesPerTask: 7}.WithDefaults()
	if cfg.StateDir != "/custom" {
		t.Fatalf("expected explicit StateDir preserved, got %q", cfg.StateDir)
	}
	if cfg.MaxRetriesPerTask != 7 {
		t.Fatalf("expected explicit MaxRetriesPerTask preserved, got %d", cfg.MaxRetriesPerTask)
	}
}

func TestModelRoutingDisabledReturnsFallback(t *testing.T) {
	r := ModelRoutingConfig{Enabled: false, PlanningModel: "big", ExecutionModel: "small"}
	if got := r.modelFor(true, "default"); got != "default" {
		t.Fatalf("expected fallback when disabled, got %q", got)
	}
}

func TestModelRoutingEnabledSelectsByEligibility(t *testing.T) {
	r := ModelRoutingConfig{Enabled: true, PlanningModel: "big", ExecutionModel: "small"}
	if got := r.modelFor(true, "default"); got != "big" {
		t.Fatalf("expected planning model, got %q", got)
	}
	if got := r.modelFor(false, "default"); got != "small" {
		t.Fatalf("expected execution model, got %q", got)
	}
}

func TestLockPathsDeriveFromStateDir(t *testing.T) {
	cfg := Config{ProjectDir: "/repo"}.WithDefaults()
	if cfg.lockPath() != "/repo/.idlehands/anton.lock.json" {
		t.Fatalf("unexpected lock path: %q", cfg.lockPath())
	}
	if cfg.registryPath() != "/repo/.idlehands/runtimes.json" {
		t.Fatalf("unexpected registry path: %q", cfg.registryPath())
	}
	if cfg.activeRuntimePath() != "/repo/.idlehands/active-runtime.json" {
		t.Fatalf("unexpected active runtime path: %q", cfg.activeRuntimePath())
	}
}
