package taskfile

import (
	"fmt"
	"strings"
)

// MarkTaskChecked flips key's `[ ]` to `[x]` exactly once; calling it again
// on an already-checked task is a no-op (SPEC_FULL.md §4.7).
func MarkTaskChecked(path, key string) error {
	tf, err := Parse(path)
	if err != nil {
		return err
	}
	idx := tf.indexOf(key)
	if idx < 0 {
		return fmt.Errorf("taskfile: task %q not found", key)
	}
	if tf.Tasks[idx].Checked {
		return nil
	}
	tf.Lines[tf.Tasks[idx].LineStart] = flipCheckbox(tf.Lines[tf.Tasks[idx].LineStart])
	return tf.writeBack(path)
}

func flipCheckbox(line string) string {
	idx := strings.Index(line, "[ ]")
	if idx < 0 {
		return line
	}
	return line[:idx] + "[x]" + line[idx+3:]
}

// AppendTaskNote appends "<!-- anton: {note} -->" on a line following key's
// task. Calling it twice with the same note writes it once.
func AppendTaskNote(path, key, note string) error {
	tf, err := Parse(path)
	if err != nil {
		return err
	}
	idx := tf.indexOf(key)
	if idx < 0 {
		return fmt.Errorf("taskfile: task %q not found", key)
	}
	t := tf.Tasks[idx]

	marker := fmt.Sprintf("<!-- anton: %s -->", note)
	insertAt := t.LineEnd + 1
	if insertAt < len(tf.Lines) && strings.Contains(tf.Lines[insertAt], marker) {
		return nil
	}

	noteLine := strings.Repeat("  ", t.Depth+1) + marker
	tf.Lines = insertLines(tf.Lines, insertAt, []string{noteLine})
	return tf.writeBack(path)
}

// InsertSubTasks inserts new `- [ ]` children immediately after parentKey's
// subtree, returning the newly-parsed task records. Empty texts is a no-op.
func InsertSubTasks(path, parentKey string, texts []string) ([]Task, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	tf, err := Parse(path)
	if err != nil {
		return nil, err
	}
	idx := tf.indexOf(parentKey)
	if idx < 0 {
		return nil, fmt.Errorf("taskfile: task %q not found", parentKey)
	}
	parent := tf.Tasks[idx]

	insertAt := tf.subtreeEnd(idx) + 1
	indent := strings.Repeat("  ", parent.Depth+1)
	newLines := make([]string, len(texts))
	for i, txt := range texts {
		newLines[i] = indent + "- [ ] " + txt
	}
	tf.Lines = insertLines(tf.Lines, insertAt, newLines)

	source := tf.serialize()
	if err := writeAtomic(path, source); err != nil {
		return nil, err
	}

	reparsed, err := ParseText(source)
	if err != nil {
		return nil, err
	}

	var created []Task
	for _, t := range reparsed.Tasks {
		if t.LineStart >= insertAt && t.LineStart < insertAt+len(texts) {
			created = append(created, t)
		}
	}
	return created, nil
}

func insertLines(lines []string, at int, newLines []string) []string {
	out := make([]string, 0, len(lines)+len(newLines))
	out = append(out, lines[:at]...)
	out = append(out, newLines...)
	out = append(out, lines[at:]...)
	return out
}

// AutoCompleteAncestors checks key's parent if every one of the parent's
// children is now checked, cascading upward through further ancestors.
func AutoCompleteAncestors(path, key string) error {
	tf, err := Parse(path)
	if err != nil {
		return err
	}
	idx := tf.indexOf(key)
	if idx < 0 {
		return fmt.Errorf("taskfile: task %q not found", key)
	}

	changed := false
	cur := tf.Tasks[idx].ParentIndex
	for cur >= 0 && !tf.Tasks[cur].Checked && allChildrenChecked(tf, cur) {
		tf.Lines[tf.Tasks[cur].LineStart] = flipCheckbox(tf.Lines[tf.Tasks[cur].LineStart])
		tf.Tasks[cur].Checked = true
		changed = true
		cur = tf.Tasks[cur].ParentIndex
	}

	if !changed {
		return nil
	}
	return tf.writeBack(path)
}

func allChildrenChecked(tf *TaskFile, idx int) bool {
	children := tf.Tasks[idx].ChildIndices
	if len(children) == 0 {
		return false
	}
	for _, c := range children {
		if !tf.Tasks[c].Checked {
			return false
		}
	}
	return true
}
