package taskfile

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// fencedLines returns the set of 0-indexed source lines that fall inside a
// fenced code block. Parsing once with goldmark (promoted from an indirect
// teacher dependency via glamour) avoids hand-rolling ``` tracking, which
// breaks on nested/indented fences and language-tagged fences alike
// (SPEC_FULL.md §4.7).
func fencedLines(source []byte) map[int]bool {
	lineStarts := computeLineStarts(source)

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	fenced := map[int]bool{}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			fenced[lineIndexForOffset(lineStarts, seg.Start)] = true
		}
		return ast.WalkSkipChildren, nil
	})
	return fenced
}

func computeLineStarts(source []byte) []int {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineIndexForOffset returns the 0-indexed line containing byte offset,
// via binary search over precomputed line-start offsets.
func lineIndexForOffset(lineStarts []int, offset int) int {
	lo, hi := 0, len(lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
