package events

import "time"

// ProgressCallback is the typed replacement for the duck-typed callback
// object the original implementation threaded through the orchestrator
// (spec.md §9 REDESIGN FLAGS). Every method is optional:
// implementations embed NoopProgressCallback to satisfy the interface and
// override only what they need.
type ProgressCallback interface {
	OnTaskStart(taskKey, taskText string, attempt int, progress Progress)
	OnTaskEnd(taskKey, taskText string, attempt int, outcome string, progress Progress)
	OnTaskSkip(taskKey, taskText, reason string, progress Progress)
	OnStage(message string)
	OnHeartbeat()
	OnToolLoop(taskKey string, level ToolLoopLevel, toolName string, count int, message string)
	OnCompaction(taskKey string, droppedMessages, freedTokens int, summaryUsed bool)
	OnVerification(taskKey, level string, passed bool, summary string)
	OnRunComplete(stopReason string, tasksCompleted, tasksFailed int, duration time.Duration, progress Progress)
}

// NoopProgressCallback implements ProgressCallback with no-op methods so
// callers can embed it and override only the hooks they care about.
type NoopProgressCallback struct{}

func (NoopProgressCallback) OnTaskStart(string, string, int, Progress)           {}
func (NoopProgressCallback) OnTaskEnd(string, string, int, string, Progress)     {}
func (NoopProgressCallback) OnTaskSkip(string, string, string, Progress)         {}
func (NoopProgressCallback) OnStage(string)                                     {}
func (NoopProgressCallback) OnHeartbeat()                                       {}
func (NoopProgressCallback) OnToolLoop(string, ToolLoopLevel, string, int, string) {}
func (NoopProgressCallback) OnCompaction(string, int, int, bool)                {}
func (NoopProgressCallback) OnVerification(string, string, bool, string)        {}
func (NoopProgressCallback) OnRunComplete(string, int, int, time.Duration, Progress) {}

// BusProgressCallback publishes every ProgressCallback hook onto a Bus as a
// typed event, so TUI/log consumers can subscribe without the orchestrator
// knowing about them (spec.md §9's replacement for the interrupt-driven
// callback object).
type BusProgressCallback struct {
	Bus       *Bus
	SessionID string
}

func (c BusProgressCallback) publish(payload EventPayload) {
	c.Bus.Publish(NewTypedEventWithSession(SourceAnton, payload, c.SessionID))
}

func (c BusProgressCallback) OnTaskStart(taskKey, taskText string, attempt int, progress Progress) {
	c.publish(TaskStartPayload{TaskKey: taskKey, TaskText: taskText, Attempt: attempt, Progress: progress})
}

func (c BusProgressCallback) OnTaskEnd(taskKey, taskText string, attempt int, outcome string, progress Progress) {
	c.publish(TaskEndPayload{TaskKey: taskKey, TaskText: taskText, Attempt: attempt, Outcome: outcome, Progress: progress})
}

func (c BusProgressCallback) OnTaskSkip(taskKey, taskText, reason string, progress Progress) {
	c.publish(TaskSkipPayload{TaskKey: taskKey, TaskText: taskText, Reason: reason, Progress: progress})
}

func (c BusProgressCallback) OnStage(message string) {
	c.publish(StagePayload{Message: message})
}

func (c BusProgressCallback) OnHeartbeat() {
	c.publish(HeartbeatPayload{At: time.Now()})
}

func (c BusProgressCallback) OnToolLoop(taskKey string, level ToolLoopLevel, toolName string, count int, message string) {
	c.publish(ToolLoopPayload{TaskKey: taskKey, Level: level, ToolName: toolName, Count: count, Message: message})
}

func (c BusProgressCallback) OnCompaction(taskKey string, droppedMessages, freedTokens int, summaryUsed bool) {
	c.publish(CompactionPayload{TaskKey: taskKey, DroppedMessages: droppedMessages, FreedTokens: freedTokens, SummaryUsed: summaryUsed})
}

func (c BusProgressCallback) OnVerification(taskKey, level string, passed bool, summary string) {
	c.publish(VerificationPayload{TaskKey: taskKey, Level: level, Passed: passed, Summary: summary})
}

func (c BusProgressCallback) OnRunComplete(stopReason string, tasksCompleted, tasksFailed int, duration time.Duration, progress Progress) {
	c.publish(RunCompletePayload{
		StopReason:     stopReason,
		TasksCompleted: tasksCompleted,
		TasksFailed:    tasksFailed,
		Duration:       duration.String(),
		Progress:       progress,
	})
}
