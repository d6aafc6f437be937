// Package planner implements the Planner: a pure function that, given a
// registry, an active-runtime snapshot, and a request, produces either a
// typed error or an ordered list of steps to reach the desired runtime
// state (SPEC_FULL.md §4.4). No I/O happens in this package.
package planner

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"mvdan.cc/sh/v3/syntax"

	"github.com/visorcraft/idlehands/internal/runtime"
)

// ErrorCode is the closed set of planning failures.
type ErrorCode string

const (
	ErrModelNotFound      ErrorCode = "MODEL_NOT_FOUND"
	ErrNoEligibleHost     ErrorCode = "NO_ELIGIBLE_HOST"
	ErrHostPolicyViolation ErrorCode = "HOST_POLICY_VIOLATION"
	ErrBackendNotFound    ErrorCode = "BACKEND_NOT_FOUND"
	ErrSplitNotImplemented ErrorCode = "SPLIT_NOT_IMPLEMENTED"
)

// Request is a plan request: the desired runtime state.
type Request struct {
	ModelID         string
	BackendOverride string
	HostOverride    string
	ForceRestart    bool
	Mode            string
}

// PlanError is returned when planning cannot produce a plan.
type PlanError struct {
	Code   ErrorCode
	Reason string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// Plan computes a plan for req against reg, given the currently active
// runtime state (nil if none). Same inputs always yield the same output.
func Plan(req Request, reg *runtime.Registry, active *runtime.ActiveRuntime) (*runtime.Plan, error) {
	model, ok := reg.FindModel(req.ModelID)
	if !ok || !model.Enabled {
		return nil, &PlanError{Code: ErrModelNotFound, Reason: fmt.Sprintf("model %q not found or disabled", req.ModelID)}
	}

	if model.SplitPolicy != "" {
		return nil, &PlanError{Code: ErrSplitNotImplemented, Reason: fmt.Sprintf("model %q declares splitPolicy %q", model.ID, model.SplitPolicy)}
	}

	targetHosts, err := selectHosts(req, model, reg)
	if err != nil {
		return nil, err
	}

	var backend *runtime.Backend
	if req.BackendOverride != "" {
		b, ok := reg.FindBackend(req.BackendOverride)
		if !ok {
			return nil, &PlanError{Code: ErrBackendNotFound, Reason: fmt.Sprintf("backend %q not found", req.BackendOverride)}
		}
		backend = &b
	} else if !model.BackendPolicy.Any {
		for _, id := range model.BackendPolicy.IDs {
			if b, ok := reg.FindBackend(id); ok && b.Enabled {
				backend = &b
				break
			}
		}
	}

	helperHosts := resolveHelperHosts(backend, reg)
	allHosts := append(append([]runtime.Host{}, targetHosts...), helperHosts...)

	if !req.ForceRestart && reuseApplies(active, model, backend, targetHosts) {
		steps := make([]runtime.PlanStep, 0, len(targetHosts))
		for _, h := range targetHosts {
			steps = append(steps, runtime.PlanStep{
				Kind:        "probe_health",
				HostID:      h.ID,
				Description: fmt.Sprintf("probe %s for reuse", h.ID),
				TimeoutSec:  model.Launch.ProbeTimeoutSec,
				ProbeIntervalMs: model.Launch.ProbeIntervalMs,
			})
		}
		return &runtime.Plan{OK: true, Reuse: true, Model: &model, Backend: backend, Hosts: targetHosts, Steps: steps}, nil
	}

	steps, err := buildFullPlan(model, backend, targetHosts, helperHosts, active, reg)
	if err != nil {
		return nil, err
	}

	return &runtime.Plan{OK: true, Reuse: false, Model: &model, Backend: backend, Hosts: allHosts, Steps: steps}, nil
}

func selectHosts(req Request, model runtime.Model, reg *runtime.Registry) ([]runtime.Host, error) {
	if req.HostOverride != "" {
		h, ok := reg.FindHost(req.HostOverride)
		if !ok || !h.Enabled {
			return nil, &PlanError{Code: ErrNoEligibleHost, Reason: fmt.Sprintf("host %q not found or disabled", req.HostOverride)}
		}
		if !model.HostPolicy.Matches(h.ID) {
			return nil, &PlanError{Code: ErrHostPolicyViolation, Reason: fmt.Sprintf("host %q violates model %q hostPolicy", h.ID, model.ID)}
		}
		return []runtime.Host{h}, nil
	}

	if model.HostPolicy.Any {
		for _, h := range reg.Hosts {
			if h.Enabled {
				return []runtime.Host{h}, nil
			}
		}
		return nil, &PlanError{Code: ErrNoEligibleHost, Reason: "no enabled hosts"}
	}

	for _, id := range model.HostPolicy.IDs {
		if h, ok := reg.FindHost(id); ok && h.Enabled {
			return []runtime.Host{h}, nil
		}
	}
	return nil, &PlanError{Code: ErrNoEligibleHost, Reason: "no enabled host matches hostPolicy"}
}

func resolveHelperHosts(backend *runtime.Backend, reg *runtime.Registry) []runtime.Host {
	if backend == nil {
		return nil
	}
	var helpers []runtime.Host
	for _, id := range backendRPCHelperIDs(backend) {
		if h, ok := reg.FindHost(id); ok {
			helpers = append(helpers, h)
		}
	}
	return helpers
}

// backendRPCHelperIDs reads the comma-separated "rpc_helper_hosts" backend arg.
func backendRPCHelperIDs(b *runtime.Backend) []string {
	raw, ok := b.Args["rpc_helper_hosts"]
	if !ok || raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func reuseApplies(active *runtime.ActiveRuntime, model runtime.Model, backend *runtime.Backend, targetHosts []runtime.Host) bool {
	if active == nil || !active.Healthy {
		return false
	}
	if active.ModelID != model.ID {
		return false
	}
	backendID := ""
	if backend != nil {
		backendID = backend.ID
	}
	if active.BackendID != backendID {
		return false
	}
	if backend != nil && len(backendRPCHelperIDs(backend)) > 0 {
		return false
	}

	plannedIDs := hostIDs(targetHosts)
	if len(active.HostIDs) != len(plannedIDs) {
		return false
	}
	for i := range plannedIDs {
		if active.HostIDs[i] != plannedIDs[i] {
			return false
		}
	}
	return true
}

func hostIDs(hosts []runtime.Host) []string {
	ids := make([]string, len(hosts))
	for i, h := range hosts {
		ids[i] = h.ID
	}
	return ids
}

// buildFullPlan emits the non-reuse step ordering per spec.md §4.4.
func buildFullPlan(model runtime.Model, backend *runtime.Backend, targetHosts, helperHosts []runtime.Host, active *runtime.ActiveRuntime, reg *runtime.Registry) ([]runtime.PlanStep, error) {
	var steps []runtime.PlanStep

	for _, h := range targetHosts {
		steps = append(steps, runtime.PlanStep{
			Kind:        "verify_model_source",
			HostID:      h.ID,
			Command:     fmt.Sprintf("test -e %s", shellQuote(model.Source)),
			TimeoutSec:  5,
			Description: fmt.Sprintf("verify model source exists on %s", h.ID),
		})
	}

	stopped := map[string]bool{}
	if active != nil {
		for _, hid := range active.HostIDs {
			if stopped[hid] {
				continue
			}
			h, ok := findHostByID(append(append([]runtime.Host{}, targetHosts...), helperHosts...), hid)
			if !ok {
				h, ok = reg.FindHost(hid)
			}
			if ok {
				steps = append(steps, stopStep(h, model))
			}
			stopped[hid] = true
		}
	}

	hasRPCHelpers := backend != nil && len(backendRPCHelperIDs(backend)) > 0
	if hasRPCHelpers {
		for _, h := range append(append([]runtime.Host{}, targetHosts...), helperHosts...) {
			if !stopped[h.ID] {
				steps = append(steps, stopStep(h, model))
				stopped[h.ID] = true
			}
		}
	}

	backendChanged := backend != nil && (active == nil || active.BackendID != backend.ID)
	if backendChanged && backend.ApplyCmd != "" {
		for _, h := range targetHosts {
			cmd, err := renderBackendTemplate(backend.ApplyCmd, model, backend, h)
			if err != nil {
				return nil, err
			}
			steps = append(steps, runtime.PlanStep{
				Kind:        "apply_backend",
				HostID:      h.ID,
				Command:     cmd,
				TimeoutSec:  30,
				RollbackCmd: backend.RollbackCmd,
				Description: fmt.Sprintf("apply backend %s on %s", backend.ID, h.ID),
			})
		}
	}
	if backend != nil && backend.VerifyCmd != "" {
		for _, h := range targetHosts {
			cmd, err := renderBackendTemplate(backend.VerifyCmd, model, backend, h)
			if err != nil {
				return nil, err
			}
			steps = append(steps, runtime.PlanStep{
				Kind:        "verify_backend",
				HostID:      h.ID,
				Command:     cmd,
				TimeoutSec:  15,
				Description: fmt.Sprintf("verify backend %s on %s", backend.ID, h.ID),
			})
		}
	}

	for _, h := range targetHosts {
		startCmd, err := renderModelTemplate(model.Launch.StartCmd, model, backend, h)
		if err != nil {
			return nil, err
		}
		steps = append(steps, runtime.PlanStep{
			Kind:        "start_model",
			HostID:      h.ID,
			Command:     startCmd,
			TimeoutSec:  model.Launch.ProbeTimeoutSec,
			Description: fmt.Sprintf("start model %s on %s", model.ID, h.ID),
		})
		steps = append(steps, runtime.PlanStep{
			Kind:            "probe_health",
			HostID:          h.ID,
			TimeoutSec:      model.Launch.ProbeTimeoutSec,
			ProbeIntervalMs: model.Launch.ProbeIntervalMs,
			Description:     fmt.Sprintf("probe model %s readiness on %s", model.ID, h.ID),
		})
	}

	return steps, nil
}

func stopStep(h runtime.Host, model runtime.Model) runtime.PlanStep {
	return runtime.PlanStep{
		Kind:        "stop_model",
		HostID:      h.ID,
		Command:     h.ModelControl.StopCmd,
		TimeoutSec:  10,
		Description: fmt.Sprintf("stop previous model on %s", h.ID),
	}
}

func findHostByID(hosts []runtime.Host, id string) (runtime.Host, bool) {
	for _, h := range hosts {
		if h.ID == id {
			return h, true
		}
	}
	return runtime.Host{}, false
}

// TemplateVars is the closed set of variables command templates may reference.
type TemplateVars struct {
	Source            string
	Port              string
	Host              string
	HostID            string
	ModelID           string
	BackendID         string
	BackendArgs       string
	BackendEnv        string
	ChatTemplateArgs  string
}

func (v TemplateVars) asMap() map[string]any {
	return map[string]any{
		"source":            v.Source,
		"port":              v.Port,
		"host":              v.Host,
		"host_id":           v.HostID,
		"model_id":          v.ModelID,
		"backend_id":        v.BackendID,
		"backend_args":      v.BackendArgs,
		"backend_env":       v.BackendEnv,
		"chat_template_args": v.ChatTemplateArgs,
	}
}

// RenderTemplate interpolates tmplStr against vars, shell-escaping every
// value. Referencing a variable outside the closed set fails at render time.
func RenderTemplate(tmplStr string, vars TemplateVars) (string, error) {
	quoted := map[string]any{}
	for k, v := range vars.asMap() {
		s, _ := v.(string)
		if s == "" {
			quoted[k] = ""
			continue
		}
		q, err := syntax.Quote(s, syntax.LangPOSIX)
		if err != nil {
			q = "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
		}
		quoted[k] = q
	}

	// chat_template_args is pre-formatted with its own flag and quoting; don't double-quote it.
	quoted["chat_template_args"] = vars.ChatTemplateArgs

	tmpl, err := template.New("cmd").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("planner: parse template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, quoted); err != nil {
		return "", fmt.Errorf("planner: render template (undefined variable?): %w", err)
	}
	return buf.String(), nil
}

// ChatTemplateArgs expands a model's chatTemplate into the appropriate
// llama.cpp-style flag: --chat-template-file for jinja/path-like values,
// --chat-template for bare template names, "" when unset.
func ChatTemplateArgs(chatTemplate string) string {
	if chatTemplate == "" {
		return ""
	}
	quoted, err := syntax.Quote(chatTemplate, syntax.LangPOSIX)
	if err != nil {
		quoted = "'" + strings.ReplaceAll(chatTemplate, "'", `'\''`) + "'"
	}
	if strings.Contains(chatTemplate, ".jinja") || strings.ContainsAny(chatTemplate, "/\\") {
		return "--chat-template-file " + quoted
	}
	return "--chat-template " + quoted
}

func renderModelTemplate(tmplStr string, model runtime.Model, backend *runtime.Backend, h runtime.Host) (string, error) {
	return RenderTemplate(tmplStr, templateVarsFor(model, backend, h))
}

func renderBackendTemplate(tmplStr string, model runtime.Model, backend *runtime.Backend, h runtime.Host) (string, error) {
	return RenderTemplate(tmplStr, templateVarsFor(model, backend, h))
}

func templateVarsFor(model runtime.Model, backend *runtime.Backend, h runtime.Host) TemplateVars {
	v := TemplateVars{
		Source:           model.Source,
		Port:             fmt.Sprintf("%d", model.RuntimeDefaults.Port),
		Host:             hostAddress(h),
		HostID:           h.ID,
		ModelID:          model.ID,
		ChatTemplateArgs: ChatTemplateArgs(model.ChatTemplate),
	}
	if backend != nil {
		v.BackendID = backend.ID
		v.BackendArgs = joinKV(backend.Args)
		v.BackendEnv = joinKV(backend.Env)
	}
	return v
}

func hostAddress(h runtime.Host) string {
	if h.Transport == runtime.TransportLocal || h.Connection.Host == "" {
		return "127.0.0.1"
	}
	return h.Connection.Host
}

func joinKV(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return q
}
