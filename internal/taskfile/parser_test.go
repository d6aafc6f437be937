package taskfile

import (
	"strings"
	"testing"
)

func TestParseBasicTasksAndDepth(t *testing.T) {
	src := `# Phase 1
- [ ] top task
  - [x] nested done
  - [ ] nested pending
`
	tf, err := ParseText(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(tf.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tf.Tasks))
	}
	if tf.Tasks[0].Depth != 0 || tf.Tasks[1].Depth != 1 || tf.Tasks[2].Depth != 1 {
		t.Errorf("unexpected depths: %+v", tf.Tasks)
	}
	if !tf.Tasks[1].Checked || tf.Tasks[2].Checked {
		t.Errorf("unexpected checked state: %+v", tf.Tasks)
	}
	if tf.Tasks[0].PhasePath[0] != "Phase 1" {
		t.Errorf("expected phase path to include heading, got %+v", tf.Tasks[0].PhasePath)
	}
	if tf.Tasks[1].ParentIndex != 0 || tf.Tasks[2].ParentIndex != 0 {
		t.Errorf("expected nested tasks parented to top task, got %+v", tf.Tasks)
	}
}

func TestParseExcludesFencedCodeBlocks(t *testing.T) {
	src := "- [ ] real task\n```\n- [ ] not a task\n```\n- [ ] another real task\n"
	tf, err := ParseText(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(tf.Tasks) != 2 {
		t.Fatalf("expected 2 tasks (fence excluded), got %d: %+v", len(tf.Tasks), tf.Tasks)
	}
}

func TestParseHeadingPopsStackOnSameOrShallowerLevel(t *testing.T) {
	src := `# A
## B
- [ ] under b
# C
- [ ] under c
`
	tf, err := ParseText(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(tf.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tf.Tasks))
	}
	if len(tf.Tasks[0].PhasePath) != 2 || tf.Tasks[0].PhasePath[1] != "B" {
		t.Errorf("expected under-b task phase path [A B], got %+v", tf.Tasks[0].PhasePath)
	}
	if len(tf.Tasks[1].PhasePath) != 1 || tf.Tasks[1].PhasePath[0] != "C" {
		t.Errorf("expected under-c task phase path [C], got %+v", tf.Tasks[1].PhasePath)
	}
}

func TestParseContinuationLinesJoinText(t *testing.T) {
	src := "- [ ] task with\n  a continuation line\n"
	tf, err := ParseText(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(tf.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tf.Tasks))
	}
	if !strings.Contains(tf.Tasks[0].Text, "continuation line") {
		t.Errorf("expected continuation text joined in, got %q", tf.Tasks[0].Text)
	}
	if tf.Tasks[0].LineEnd != 1 {
		t.Errorf("expected LineEnd to cover continuation line, got %d", tf.Tasks[0].LineEnd)
	}
}

func TestParseSkipsEmptyTaskText(t *testing.T) {
	src := "- [ ] \n- [ ] real\n"
	tf, err := ParseText(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(tf.Tasks) != 1 {
		t.Fatalf("expected empty task line skipped, got %d tasks: %+v", len(tf.Tasks), tf.Tasks)
	}
}

func TestTaskKeysDistinctForDuplicateSiblingText(t *testing.T) {
	src := "- [ ] retry\n- [ ] retry\n"
	tf, err := ParseText(src)
	if err != nil {
		t.Fatal(err)
	}
	if tf.Tasks[0].Key == tf.Tasks[1].Key {
		t.Errorf("expected distinct keys for duplicate sibling text, got both %q", tf.Tasks[0].Key)
	}
}

func TestTaskKeyStableUnderUnrelatedInsertionAbove(t *testing.T) {
	src1 := "- [ ] alpha\n- [ ] beta\n"
	src2 := "- [ ] inserted line\n- [ ] alpha\n- [ ] beta\n"

	tf1, err := ParseText(src1)
	if err != nil {
		t.Fatal(err)
	}
	tf2, err := ParseText(src2)
	if err != nil {
		t.Fatal(err)
	}

	var betaKey1, betaKey2 string
	for _, tsk := range tf1.Tasks {
		if tsk.Text == "beta" {
			betaKey1 = tsk.Key
		}
	}
	for _, tsk := range tf2.Tasks {
		if tsk.Text == "beta" {
			betaKey2 = tsk.Key
		}
	}
	if betaKey1 == "" || betaKey1 != betaKey2 {
		t.Errorf("expected beta's key stable across insertion, got %q vs %q", betaKey1, betaKey2)
	}
}

func TestFindRunnablePendingTasksOnlyReturnsLeaves(t *testing.T) {
	src := `- [ ] parent
  - [ ] child pending
- [ ] leaf pending
- [x] leaf done
`
	tf, err := ParseText(src)
	if err != nil {
		t.Fatal(err)
	}
	runnable := FindRunnablePendingTasks(tf)
	if len(runnable) != 2 {
		t.Fatalf("expected 2 runnable leaf tasks, got %d: %+v", len(runnable), runnable)
	}
	for _, r := range runnable {
		if r.Text == "parent" {
			t.Errorf("expected parent (non-leaf) excluded from runnable set")
		}
	}
}

func TestParsePreservesTrailingNewline(t *testing.T) {
	withNL, err := ParseText("- [ ] a\n")
	if err != nil {
		t.Fatal(err)
	}
	withoutNL, err := ParseText("- [ ] a")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(withNL.serialize(), "\n") {
		t.Error("expected trailing newline preserved")
	}
	if strings.HasSuffix(withoutNL.serialize(), "\n") {
		t.Error("expected no trailing newline added when source had none")
	}
}
