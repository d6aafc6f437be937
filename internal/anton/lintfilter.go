package anton

import (
	"regexp"
	"strings"
)

// lintErrorPatterns recognizes the error-line shape of four lint output
// formats (spec.md §4.9, plus the Go-vet/golangci-lint format named as a
// SPEC_FULL.md supplement since this repo's own CI is Go-shaped).
var lintErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^.+:\d+:\d+:\s+error\b`),      // generic line:col error
	regexp.MustCompile(`error\s+TS\d+:`),              // TypeScript
	regexp.MustCompile(`error\[E\d+\]`),               // Rust
	regexp.MustCompile(`^[\w./-]+\.go:\d+:\d+:\s+\S`), // go vet / golangci-lint
}

// filePathHeaderPattern recognizes a lone file-path header line that
// precedes one or more lint errors in some formatters' output, so it can be
// carried along with the errors that follow it.
var filePathHeaderPattern = regexp.MustCompile(`^[\w./-]+\.(go|ts|tsx|js|jsx|rs)$`)

// countLintErrors returns the number of lines matching any recognized lint
// error format.
func countLintErrors(output string) int {
	count := 0
	for _, line := range strings.Split(output, "\n") {
		if isLintErrorLine(line) {
			count++
		}
	}
	return count
}

func isLintErrorLine(line string) bool {
	for _, p := range lintErrorPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// filterLintOutput keeps only error lines (and the file-path header line
// immediately preceding a run of them, if any) so a retry prompt can locate
// each error without the full noisy tool output (spec.md §4.9).
func filterLintOutput(output string) string {
	lines := strings.Split(output, "\n")
	var kept []string
	lastWasHeaderCandidate := false
	var pendingHeader string

	for _, line := range lines {
		switch {
		case isLintErrorLine(line):
			if pendingHeader != "" {
				kept = append(kept, pendingHeader)
				pendingHeader = ""
			}
			kept = append(kept, line)
			lastWasHeaderCandidate = false
		case filePathHeaderPattern.MatchString(strings.TrimSpace(line)):
			pendingHeader = line
			lastWasHeaderCandidate = true
		default:
			if !lastWasHeaderCandidate {
				pendingHeader = ""
			}
			lastWasHeaderCandidate = false
		}
	}
	return strings.Join(kept, "\n")
}
