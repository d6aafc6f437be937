package events

import (
	"testing"
	"time"
)

func TestTypedEvent_TaskStart(t *testing.T) {
	payload := TaskStartPayload{
		TaskKey:  "abc123",
		TaskText: "wire up health prober",
		Attempt:  1,
		Progress: Progress{TasksTotal: 10, TasksCompleted: 2},
	}
	evt := NewTypedEvent(SourceAnton, payload)

	if evt.Type != EventTaskStart {
		t.Fatalf("expected type %q, got %q", EventTaskStart, evt.Type)
	}
	got, ok := ExtractPayload[TaskStartPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.TaskKey != "abc123" {
		t.Fatalf("expected task key %q, got %q", "abc123", got.TaskKey)
	}
	if got.Progress.TasksTotal != 10 {
		t.Fatalf("expected tasksTotal 10, got %d", got.Progress.TasksTotal)
	}
}

func TestTypedEvent_TaskEnd(t *testing.T) {
	payload := TaskEndPayload{TaskKey: "k1", Outcome: "pass", Attempt: 2}
	evt := NewTypedEvent(SourceAnton, payload)

	if evt.Type != EventTaskEnd {
		t.Fatalf("expected type %q, got %q", EventTaskEnd, evt.Type)
	}
	got, ok := ExtractPayload[TaskEndPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Outcome != "pass" {
		t.Fatalf("expected outcome %q, got %q", "pass", got.Outcome)
	}
}

func TestTypedEvent_ToolLoop(t *testing.T) {
	payload := ToolLoopPayload{
		TaskKey:  "k1",
		Level:    ToolLoopLevelCritical,
		ToolName: "run_tests",
		Count:    9,
		Message:  "repeated identical call",
	}
	evt := NewTypedEvent(SourceAnton, payload)

	if evt.Type != EventToolLoop {
		t.Fatalf("expected type %q, got %q", EventToolLoop, evt.Type)
	}
	got, ok := ExtractPayload[ToolLoopPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Level != ToolLoopLevelCritical {
		t.Fatalf("expected level %q, got %q", ToolLoopLevelCritical, got.Level)
	}
	if got.Count != 9 {
		t.Fatalf("expected count 9, got %d", got.Count)
	}
}

func TestTypedEvent_Compaction(t *testing.T) {
	payload := CompactionPayload{TaskKey: "k1", DroppedMessages: 4, FreedTokens: 512, SummaryUsed: true}
	evt := NewTypedEvent(SourceAnton, payload)

	if evt.Type != EventCompaction {
		t.Fatalf("expected type %q, got %q", EventCompaction, evt.Type)
	}
	got, ok := ExtractPayload[CompactionPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if !got.SummaryUsed {
		t.Fatal("expected SummaryUsed true")
	}
	if got.FreedTokens != 512 {
		t.Fatalf("expected freedTokens 512, got %d", got.FreedTokens)
	}
}

func TestTypedEvent_Verification(t *testing.T) {
	payload := VerificationPayload{TaskKey: "k1", Level: "L1", Passed: false, Summary: "build failed"}
	evt := NewTypedEvent(SourceAnton, payload)

	got, ok := ExtractPayload[VerificationPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Passed {
		t.Fatal("expected Passed false")
	}
	if got.Summary != "build failed" {
		t.Fatalf("expected summary %q, got %q", "build failed", got.Summary)
	}
}

func TestTypedEvent_RunComplete(t *testing.T) {
	payload := RunCompletePayload{
		StopReason:     "all_tasks_done",
		TasksCompleted: 8,
		TasksFailed:    1,
		Duration:       (3 * time.Minute).String(),
		Progress:       Progress{TasksTotal: 9, TasksCompleted: 8, TasksFailed: 1},
	}
	evt := NewTypedEvent(SourceAnton, payload)

	if evt.Type != EventRunComplete {
		t.Fatalf("expected type %q, got %q", EventRunComplete, evt.Type)
	}
	got, ok := ExtractPayload[RunCompletePayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.StopReason != "all_tasks_done" {
		t.Fatalf("expected stopReason %q, got %q", "all_tasks_done", got.StopReason)
	}
}

func TestTypedEvent_PlanStepLifecycle(t *testing.T) {
	start := NewTypedEvent(SourceRuntime, PlanStepStartPayload{HostID: "gpu-1", Kind: "start_model"})
	if start.Type != EventPlanStepStart {
		t.Fatalf("expected type %q, got %q", EventPlanStepStart, start.Type)
	}

	failed := NewTypedEvent(SourceRuntime, PlanStepFailedPayload{HostID: "gpu-1", Kind: "start_model", Error: "timeout"})
	got, ok := ExtractPayload[PlanStepFailedPayload](failed)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Error != "timeout" {
		t.Fatalf("expected error %q, got %q", "timeout", got.Error)
	}
}

func TestTypedEventWithSession(t *testing.T) {
	payload := TaskStartPayload{TaskKey: "k1"}
	evt := NewTypedEventWithSession(SourceAnton, payload, "run_abc123")

	if evt.SessionID != "run_abc123" {
		t.Fatalf("expected session_id %q, got %q", "run_abc123", evt.SessionID)
	}
	if evt.Source != SourceAnton {
		t.Fatalf("expected source %q, got %q", SourceAnton, evt.Source)
	}
	got, ok := ExtractPayload[TaskStartPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.TaskKey != "k1" {
		t.Fatalf("expected task key %q, got %q", "k1", got.TaskKey)
	}
}

func TestExtractPayload_WrongType(t *testing.T) {
	payload := TaskStartPayload{TaskKey: "k1"}
	evt := NewTypedEvent(SourceAnton, payload)

	got, ok := ExtractPayload[ToolLoopPayload](evt)
	// Extraction succeeds (JSON round-trip) but fields are zero-valued.
	if !ok {
		t.Fatal("ExtractPayload should succeed even for mismatched types (JSON is flexible)")
	}
	if got.ToolName != "" {
		t.Fatalf("expected empty tool name for wrong type extraction, got %q", got.ToolName)
	}
	if got.Count != 0 {
		t.Fatalf("expected zero count for wrong type extraction, got %d", got.Count)
	}
}
