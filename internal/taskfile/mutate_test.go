package taskfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempTaskFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMarkTaskCheckedFlipsBoxAndIsIdempotent(t *testing.T) {
	path := writeTempTaskFile(t, "- [ ] do the thing\n")
	tf, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	key := tf.Tasks[0].Key

	if err := MarkTaskChecked(path, key); err != nil {
		t.Fatal(err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "- [x] do the thing") {
		t.Errorf("expected task checked, got %q", out)
	}

	// calling again must be a no-op, not double-flip or error
	if err := MarkTaskChecked(path, key); err != nil {
		t.Fatal(err)
	}
	out2, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(out2) {
		t.Errorf("expected second call to be a no-op, got %q vs %q", out, out2)
	}
}

func TestAppendTaskNoteInsertsOnceAndIsIdempotent(t *testing.T) {
	path := writeTempTaskFile(t, "- [ ] task\n")
	tf, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	key := tf.Tasks[0].Key

	if err := AppendTaskNote(path, key, "retried due to timeout"); err != nil {
		t.Fatal(err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "<!-- anton: retried due to timeout -->") {
		t.Errorf("expected note inserted, got %q", out)
	}

	if err := AppendTaskNote(path, key, "retried due to timeout"); err != nil {
		t.Fatal(err)
	}
	out2, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(out2), "retried due to timeout") != 1 {
		t.Errorf("expected note not duplicated, got %q", out2)
	}
}

func TestInsertSubTasksEmptyIsNoop(t *testing.T) {
	path := writeTempTaskFile(t, "- [ ] parent\n")
	tf, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	created, err := InsertSubTasks(path, tf.Tasks[0].Key, nil)
	if err != nil {
		t.Fatal(err)
	}
	if created != nil {
		t.Errorf("expected nil result for empty texts, got %+v", created)
	}
}

func TestInsertSubTasksAddsChildrenAfterSubtree(t *testing.T) {
	path := writeTempTaskFile(t, "- [ ] parent\n  - [ ] existing child\n- [ ] sibling\n")
	tf, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	parentKey := tf.Tasks[0].Key

	created, err := InsertSubTasks(path, parentKey, []string{"new child one", "new child two"})
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 new tasks, got %d: %+v", len(created), created)
	}
	for _, c := range created {
		if c.Depth != 1 {
			t.Errorf("expected new children at depth 1, got %+v", c)
		}
	}

	reparsed, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	var texts []string
	for _, tsk := range reparsed.Tasks {
		texts = append(texts, tsk.Text)
	}
	expectOrder := []string{"parent", "existing child", "new child one", "new child two", "sibling"}
	if len(texts) != len(expectOrder) {
		t.Fatalf("expected %v, got %v", expectOrder, texts)
	}
	for i, want := range expectOrder {
		if texts[i] != want {
			t.Errorf("position %d: expected %q, got %q (%v)", i, want, texts[i], texts)
		}
	}
}

func TestAutoCompleteAncestorsCascadesUpward(t *testing.T) {
	path := writeTempTaskFile(t, `- [ ] grandparent
  - [ ] parent
    - [x] child one
    - [ ] child two
`)
	tf, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	var childTwoKey string
	for _, tsk := range tf.Tasks {
		if tsk.Text == "child two" {
			childTwoKey = tsk.Key
		}
	}

	if err := MarkTaskChecked(path, childTwoKey); err != nil {
		t.Fatal(err)
	}
	if err := AutoCompleteAncestors(path, childTwoKey); err != nil {
		t.Fatal(err)
	}

	reparsed, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, tsk := range reparsed.Tasks {
		if !tsk.Checked {
			t.Errorf("expected all ancestors checked after cascade, still unchecked: %+v", tsk)
		}
	}
}

func TestAutoCompleteAncestorsStopsAtIncompleteAncestor(t *testing.T) {
	path := writeTempTaskFile(t, `- [ ] grandparent
  - [ ] parent a
    - [ ] child a1
  - [ ] parent b
    - [ ] child b1
`)
	tf, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	var childA1Key string
	for _, tsk := range tf.Tasks {
		if tsk.Text == "child a1" {
			childA1Key = tsk.Key
		}
	}

	if err := MarkTaskChecked(path, childA1Key); err != nil {
		t.Fatal(err)
	}
	if err := AutoCompleteAncestors(path, childA1Key); err != nil {
		t.Fatal(err)
	}

	reparsed, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, tsk := range reparsed.Tasks {
		switch tsk.Text {
		case "child a1", "parent a":
			if !tsk.Checked {
				t.Errorf("expected %q checked, got unchecked", tsk.Text)
			}
		case "grandparent", "parent b", "child b1":
			if tsk.Checked {
				t.Errorf("expected %q to remain unchecked, sibling branch incomplete", tsk.Text)
			}
		}
	}
}
