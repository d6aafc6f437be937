package planner

import (
	"testing"

	"github.com/visorcraft/idlehands/internal/runtime"
)

func baseRegistry() *runtime.Registry {
	return &runtime.Registry{
		Hosts: []runtime.Host{
			{ID: "local", Enabled: true, Transport: runtime.TransportLocal, ModelControl: runtime.ModelControl{StopCmd: "pkill server"}},
		},
		Backends: []runtime.Backend{
			{ID: "vulkan", Enabled: true, Type: runtime.BackendVulkan, HostFilters: runtime.Selector{Any: true}},
		},
		Models: []runtime.Model{
			{
				ID:            "llama-3",
				Enabled:       true,
				Source:        "/models/llama-3.gguf",
				HostPolicy:    runtime.Selector{Any: true},
				BackendPolicy: runtime.Selector{IDs: []string{"vulkan"}},
				Launch:        runtime.LaunchConfig{StartCmd: "serve --model {{.source}} --port {{.port}}", ProbeTimeoutSec: 8, ProbeIntervalMs: 500},
				RuntimeDefaults: runtime.RuntimeDefaults{Port: 8080},
			},
		},
	}
}

func TestPlanModelNotFound(t *testing.T) {
	reg := baseRegistry()
	_, err := Plan(Request{ModelID: "missing"}, reg, nil)
	perr, ok := err.(*PlanError)
	if !ok || perr.Code != ErrModelNotFound {
		t.Fatalf("expected MODEL_NOT_FOUND, got %v", err)
	}
}

func TestPlanSplitNotImplemented(t *testing.T) {
	reg := baseRegistry()
	m := reg.Models[0]
	m.SplitPolicy = "tensor-parallel"
	reg.Models[0] = m

	_, err := Plan(Request{ModelID: "llama-3"}, reg, nil)
	perr, ok := err.(*PlanError)
	if !ok || perr.Code != ErrSplitNotImplemented {
		t.Fatalf("expected SPLIT_NOT_IMPLEMENTED, got %v", err)
	}
}

func TestPlanFullSequenceOrdering(t *testing.T) {
	reg := baseRegistry()
	plan, err := Plan(Request{ModelID: "llama-3"}, reg, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Reuse {
		t.Fatal("expected non-reuse plan with no active runtime")
	}

	var kinds []string
	for _, s := range plan.Steps {
		kinds = append(kinds, string(s.Kind))
	}
	want := []string{"verify_model_source", "start_model", "probe_health"}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected step kinds: %v", kinds)
	}
	for i, k := range want {
		if kinds[i] != k {
			t.Errorf("step %d: expected %s, got %s", i, k, kinds[i])
		}
	}
}

func TestPlanReuseWhenActiveMatches(t *testing.T) {
	reg := baseRegistry()
	active := &runtime.ActiveRuntime{
		ModelID:   "llama-3",
		BackendID: "vulkan",
		HostIDs:   []string{"local"},
		Healthy:   true,
	}

	plan, err := Plan(Request{ModelID: "llama-3"}, reg, active)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !plan.Reuse {
		t.Fatal("expected reuse plan")
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Kind != "probe_health" {
		t.Errorf("expected single probe_health step, got %+v", plan.Steps)
	}
}

func TestPlanForceRestartSkipsReuse(t *testing.T) {
	reg := baseRegistry()
	active := &runtime.ActiveRuntime{
		ModelID:   "llama-3",
		BackendID: "vulkan",
		HostIDs:   []string{"local"},
		Healthy:   true,
	}

	plan, err := Plan(Request{ModelID: "llama-3", ForceRestart: true}, reg, active)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Reuse {
		t.Error("expected forceRestart to bypass reuse detection")
	}
}

func TestPlanOmitsApplyBackendWhenBackendUnchanged(t *testing.T) {
	reg := baseRegistry()
	reg.Backends[0].ApplyCmd = "install-vulkan.sh"
	active := &runtime.ActiveRuntime{
		ModelID:   "llama-3",
		BackendID: "vulkan",
		HostIDs:   []string{"local"},
		Healthy:   true,
	}

	plan, err := Plan(Request{ModelID: "llama-3", ForceRestart: true}, reg, active)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, s := range plan.Steps {
		if s.Kind == "apply_backend" {
			t.Fatalf("expected no apply_backend step when backend unchanged, got steps %+v", plan.Steps)
		}
	}
}

func TestPlanEmitsApplyBackendWhenBackendChanged(t *testing.T) {
	reg := baseRegistry()
	reg.Backends[0].ApplyCmd = "install-vulkan.sh"
	active := &runtime.ActiveRuntime{
		ModelID:   "llama-3",
		BackendID: "cpu",
		HostIDs:   []string{"local"},
		Healthy:   true,
	}

	plan, err := Plan(Request{ModelID: "llama-3", ForceRestart: true}, reg, active)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	found := false
	for _, s := range plan.Steps {
		if s.Kind == "apply_backend" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected apply_backend step when backend changed, got steps %+v", plan.Steps)
	}
}

func TestPlanEmitsApplyBackendWhenNoActiveRuntime(t *testing.T) {
	reg := baseRegistry()
	reg.Backends[0].ApplyCmd = "install-vulkan.sh"

	plan, err := Plan(Request{ModelID: "llama-3"}, reg, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	found := false
	for _, s := range plan.Steps {
		if s.Kind == "apply_backend" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected apply_backend step on first launch, got steps %+v", plan.Steps)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	reg := baseRegistry()
	p1, err1 := Plan(Request{ModelID: "llama-3"}, reg, nil)
	p2, err2 := Plan(Request{ModelID: "llama-3"}, reg, nil)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if len(p1.Steps) != len(p2.Steps) {
		t.Fatal("plans differ in step count across identical calls")
	}
	for i := range p1.Steps {
		if p1.Steps[i] != p2.Steps[i] {
			t.Errorf("step %d differs: %+v vs %+v", i, p1.Steps[i], p2.Steps[i])
		}
	}
}

func TestRenderTemplateShellEscapesValues(t *testing.T) {
	out, err := RenderTemplate("serve {{.source}}", TemplateVars{Source: "it's a model.gguf"})
	if err != nil {
		t.Fatal(err)
	}
	if out == "serve it's a model.gguf" {
		t.Error("expected shell-escaped output, got raw value")
	}
}

func TestRenderTemplateRejectsUndefinedVariable(t *testing.T) {
	_, err := RenderTemplate("serve {{.unknown_var}}", TemplateVars{})
	if err == nil {
		t.Error("expected error for undefined template variable")
	}
}

func TestChatTemplateArgsEmpty(t *testing.T) {
	if got := ChatTemplateArgs(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestChatTemplateArgsFileForm(t *testing.T) {
	got := ChatTemplateArgs("templates/chatml.jinja")
	if !containsPrefix(got, "--chat-template-file ") {
		t.Errorf("expected file form, got %q", got)
	}
}

func TestChatTemplateArgsNameForm(t *testing.T) {
	got := ChatTemplateArgs("chatml")
	if !containsPrefix(got, "--chat-template ") {
		t.Errorf("expected name form, got %q", got)
	}
}

func containsPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
