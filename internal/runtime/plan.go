package runtime

// PlanStepKind identifies what kind of action a PlanStep performs.
type PlanStepKind string

const (
	StepVerifyModelSource PlanStepKind = "verify_model_source"
	StepStopModel         PlanStepKind = "stop_model"
	StepApplyBackend      PlanStepKind = "apply_backend"
	StepVerifyBackend     PlanStepKind = "verify_backend"
	StepStartModel        PlanStepKind = "start_model"
	StepProbeHealth       PlanStepKind = "probe_health"
)

// PlanStep is one command to run on one host, in plan order.
type PlanStep struct {
	Kind            PlanStepKind `json:"kind"`
	HostID          string       `json:"hostId"`
	Command         string       `json:"command,omitempty"`
	TimeoutSec      int          `json:"timeoutSec,omitempty"`
	ProbeIntervalMs int          `json:"probeIntervalMs,omitempty"`
	RollbackCmd     string       `json:"rollbackCmd,omitempty"`
	Description     string       `json:"description,omitempty"`
}

// Plan is the Planner's sole output: a fully resolved, ordered sequence of
// steps the Executor runs against real hosts, or a reuse shortcut when the
// currently active runtime already satisfies the request.
type Plan struct {
	OK      bool       `json:"ok"`
	Reuse   bool       `json:"reuse"`
	Model   *Model     `json:"model,omitempty"`
	Backend *Backend   `json:"backend,omitempty"`
	Hosts   []Host     `json:"hosts,omitempty"`
	Steps   []PlanStep `json:"steps"`
}
