// Package taskfile parses and mutates the markdown task lists Anton reads
// and checks off (SPEC_FULL.md §4.7). Fenced-code-block exclusion goes
// through goldmark; everything needing exact byte/line fidelity — headings,
// task markers, continuation lines, and every mutation — stays a hand-rolled
// line scanner, since goldmark's AST doesn't expose the raw line ranges a
// surgical single-character/line edit needs without reformatting the
// surrounding document (see DESIGN.md).
package taskfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(\S.*?)\s*$`)
	taskPattern    = regexp.MustCompile(`^(\s*)- \[([ xX])\]\s+(\S.*?)\s*$`)
)

// Task is one `- [ ]`/`- [x]` line, plus the structural position it was
// parsed at.
type Task struct {
	Key          string
	Text         string
	Checked      bool
	Depth        int
	PhasePath    []string
	ParentIndex  int // -1 for a root-level task
	ChildIndices []int
	LineStart    int // 0-indexed line of the task marker itself
	LineEnd      int // 0-indexed, inclusive: LineStart + any continuation lines
}

// TaskFile is a parsed markdown task list: the raw source lines (preserved
// for surgical mutation) plus the flat, ordered list of tasks found in them.
type TaskFile struct {
	Path            string
	Lines           []string
	Tasks           []Task
	trailingNewline bool
}

// Parse reads path and parses it as a TaskFile.
func Parse(path string) (*TaskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taskfile: read %s: %w", path, err)
	}
	tf, err := ParseText(string(data))
	if err != nil {
		return nil, err
	}
	tf.Path = path
	return tf, nil
}

// ParseText parses markdown source into a TaskFile, per the rules in
// SPEC_FULL.md §4.7.
func ParseText(source string) (*TaskFile, error) {
	trailingNewline := strings.HasSuffix(source, "\n")
	lines := strings.Split(source, "\n")
	if trailingNewline {
		lines = lines[:len(lines)-1]
	}

	fenced := fencedLines([]byte(source))

	tf := &TaskFile{Lines: lines, trailingNewline: trailingNewline}

	type headingFrame struct {
		level int
		text  string
	}
	type taskFrame struct {
		depth int
		index int
	}

	var headingStack []headingFrame
	var taskStack []taskFrame
	siblingOrdinal := map[string]int{}

	for i, raw := range lines {
		if fenced[i] {
			continue
		}

		if m := headingPattern.FindStringSubmatch(raw); m != nil {
			level := len(m[1])
			for len(headingStack) > 0 && headingStack[len(headingStack)-1].level >= level {
				headingStack = headingStack[:len(headingStack)-1]
			}
			headingStack = append(headingStack, headingFrame{level: level, text: m[2]})
			taskStack = nil
			continue
		}

		if m := taskPattern.FindStringSubmatch(raw); m != nil {
			depth := indentDepth(m[1])
			text := m[3]
			checked := m[2] == "x" || m[2] == "X"
			if text == "" {
				continue
			}

			for len(taskStack) > 0 && taskStack[len(taskStack)-1].depth >= depth {
				taskStack = taskStack[:len(taskStack)-1]
			}

			parentIdx := -1
			if len(taskStack) > 0 {
				parentIdx = taskStack[len(taskStack)-1].index
			}

			phasePath := make([]string, len(headingStack))
			for hi, hf := range headingStack {
				phasePath[hi] = hf.text
			}

			ordKey := fmt.Sprintf("%d\x1f%s", parentIdx, text)
			ordinal := siblingOrdinal[ordKey]
			siblingOrdinal[ordKey] = ordinal + 1

			idx := len(tf.Tasks)
			tf.Tasks = append(tf.Tasks, Task{
				Key:         taskKey(phasePath, ordinal, text),
				Text:        text,
				Checked:     checked,
				Depth:       depth,
				PhasePath:   phasePath,
				ParentIndex: parentIdx,
				LineStart:   i,
				LineEnd:     i,
			})
			if parentIdx >= 0 {
				tf.Tasks[parentIdx].ChildIndices = append(tf.Tasks[parentIdx].ChildIndices, idx)
			}
			taskStack = append(taskStack, taskFrame{depth: depth, index: idx})
			continue
		}

		if len(taskStack) > 0 && strings.TrimSpace(raw) != "" && !strings.HasPrefix(strings.TrimSpace(raw), "<!-- anton:") {
			innermost := taskStack[len(taskStack)-1]
			if indentDepth(leadingIndent(raw)) > innermost.depth {
				t := &tf.Tasks[innermost.index]
				t.Text += " " + strings.TrimSpace(raw)
				t.LineEnd = i
			}
		}
	}

	return tf, nil
}

// indentDepth converts leading whitespace into a nesting depth: 2 spaces or
// 1 tab per level (SPEC_FULL.md §4.7).
func indentDepth(indent string) int {
	depth, spaces := 0, 0
	for _, r := range indent {
		switch r {
		case '\t':
			depth++
		case ' ':
			spaces++
			if spaces == 2 {
				depth++
				spaces = 0
			}
		}
	}
	return depth
}

func leadingIndent(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// taskKey derives a stable key from phasePath + siblingOrdinal + the task's
// own text, per SPEC_FULL.md §4.7: keys collide across parses iff that
// triple collides, independent of line number, so inserting unrelated lines
// above a task never changes its key.
func taskKey(phasePath []string, siblingOrdinal int, text string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(phasePath, "\x1f")))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d", siblingOrdinal)
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// indexOf returns the slice index of the task with the given key, or -1.
func (tf *TaskFile) indexOf(key string) int {
	for i := range tf.Tasks {
		if tf.Tasks[i].Key == key {
			return i
		}
	}
	return -1
}

// subtreeEnd returns the last line index covered by idx's task and all of
// its descendants.
func (tf *TaskFile) subtreeEnd(idx int) int {
	end := tf.Tasks[idx].LineEnd
	for _, c := range tf.Tasks[idx].ChildIndices {
		if e := tf.subtreeEnd(c); e > end {
			end = e
		}
	}
	return end
}

// FindRunnablePendingTasks returns every unchecked leaf task (no
// sub-tasks), in document order — the set Anton's main loop selects from.
func FindRunnablePendingTasks(tf *TaskFile) []Task {
	var out []Task
	for _, t := range tf.Tasks {
		if !t.Checked && len(t.ChildIndices) == 0 {
			out = append(out, t)
		}
	}
	return out
}

func (tf *TaskFile) serialize() string {
	s := strings.Join(tf.Lines, "\n")
	if tf.trailingNewline {
		s += "\n"
	}
	return s
}

func (tf *TaskFile) writeBack(path string) error {
	return writeAtomic(path, tf.serialize())
}

func writeAtomic(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("taskfile: write tmp: %w", err)
	}
	return os.Rename(tmp, path)
}
