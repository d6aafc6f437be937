package agentsession

// loopAction is the escalation level a tool-loop detector assigns to the
// current tool call, in increasing severity (spec.md §4.6).
type loopAction string

const (
	loopActionNone   loopAction = "none"
	loopActionWarn   loopAction = "warn"
	loopActionInject loopAction = "inject"
	loopActionAbort  loopAction = "abort"
)

// ToolLoopConfig configures the windowed tool-loop detector.
type ToolLoopConfig struct {
	WindowSize              int // default 30
	WarningThreshold        int // default 5
	CriticalThreshold       int // default 8
	CircuitBreakerThreshold int // default 12
	DisableGenericRepeat    bool
	DisableKnownPollNoProgress bool
	DisablePingPong         bool
}

func (c ToolLoopConfig) withDefaults() ToolLoopConfig {
	if c.WindowSize <= 0 {
		c.WindowSize = 30
	}
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = 5
	}
	if c.CriticalThreshold <= 0 {
		c.CriticalThreshold = 8
	}
	if c.CircuitBreakerThreshold <= 0 {
		c.CircuitBreakerThreshold = 12
	}
	return c
}

// toolLoopEvent is one detector's verdict on the tool call just recorded.
type toolLoopEvent struct {
	Detector string
	Action   loopAction
	Tool     string
	Count    int
}

// toolLoopDetector tracks a windowed history of (tool, argsFingerprint)
// pairs and flags repeats per spec.md §4.6's three detectors.
type toolLoopDetector struct {
	cfg     ToolLoopConfig
	history []string
}

func newToolLoopDetector(cfg ToolLoopConfig) *toolLoopDetector {
	return &toolLoopDetector{cfg: cfg.withDefaults()}
}

func fingerprint(tc ToolCall) string {
	return tc.Name + "|" + tc.ArgsJSON
}

// record appends tc to the windowed history and returns every detector
// verdict that fired at or above the warning threshold.
func (d *toolLoopDetector) record(tc ToolCall) []toolLoopEvent {
	fp := fingerprint(tc)
	d.history = append(d.history, fp)
	if len(d.history) > d.cfg.WindowSize {
		d.history = d.history[len(d.history)-d.cfg.WindowSize:]
	}

	var events []toolLoopEvent

	if !d.cfg.DisableGenericRepeat {
		count := countOccurrences(d.history, fp)
		if action := d.thresholdAction(count); action != loopActionNone {
			events = append(events, toolLoopEvent{Detector: "generic_repeat", Action: action, Tool: tc.Name, Count: count})
		}
	}

	if !d.cfg.DisableKnownPollNoProgress {
		if run := consecutiveRun(d.history, fp); run >= 2 {
			if action := d.thresholdAction(run); action != loopActionNone {
				events = append(events, toolLoopEvent{Detector: "known_poll_no_progress", Action: action, Tool: tc.Name, Count: run})
			}
		}
	}

	if !d.cfg.DisablePingPong {
		if run, ok := pingPongRun(d.history); ok {
			if action := d.thresholdAction(run); action != loopActionNone {
				events = append(events, toolLoopEvent{Detector: "ping_pong", Action: action, Tool: tc.Name, Count: run})
			}
		}
	}

	return events
}

func (d *toolLoopDetector) thresholdAction(count int) loopAction {
	switch {
	case count >= d.cfg.CircuitBreakerThreshold:
		return loopActionAbort
	case count >= d.cfg.CriticalThreshold:
		return loopActionInject
	case count >= d.cfg.WarningThreshold:
		return loopActionWarn
	default:
		return loopActionNone
	}
}

func countOccurrences(history []string, fp string) int {
	n := 0
	for _, h := range history {
		if h == fp {
			n++
		}
	}
	return n
}

// consecutiveRun returns the length of the trailing run of fp at the end of history.
func consecutiveRun(history []string, fp string) int {
	n := 0
	for i := len(history) - 1; i >= 0 && history[i] == fp; i-- {
		n++
	}
	return n
}

// pingPongRun detects an alternating A,B,A,B,... tail of at least 4 calls
// between exactly two distinct fingerprints, returning the run's length.
func pingPongRun(history []string) (int, bool) {
	if len(history) < 4 {
		return 0, false
	}
	a, b := history[len(history)-1], history[len(history)-2]
	if a == b {
		return 0, false
	}
	want := [2]string{a, b}
	run := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i] != want[(len(history)-1-i)%2] {
			break
		}
		run++
	}
	if run < 4 {
		return 0, false
	}
	return run, true
}
