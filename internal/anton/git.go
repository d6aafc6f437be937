package anton

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// gitRunner runs plain local git commands against a working tree, following
// the same bounded-timeout os/exec idiom as internal/hostrunner — the
// transport concern there (ssh) doesn't apply, so this stays a thinner
// sibling rather than a reuse of hostrunner.Runner.
type gitRunner struct {
	dir     string
	timeout time.Duration
}

func newGitRunner(dir string) *gitRunner {
	return &gitRunner{dir: dir, timeout: 30 * time.Second}
}

func (g *gitRunner) run(ctx context.Context, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// isDirty reports whether the working tree has uncommitted changes
// (tracked or untracked), per spec.md §4.8 startup step 6.
func (g *gitRunner) isDirty(ctx context.Context) (bool, error) {
	out, _, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("anton: git status: %w", err)
	}
	return out != "", nil
}

// createBranch creates and checks out a new branch named name.
func (g *gitRunner) createBranch(ctx context.Context, name string) error {
	_, stderr, err := g.run(ctx, "checkout", "-b", name)
	if err != nil {
		return fmt.Errorf("anton: git checkout -b %s: %w (%s)", name, err, stderr)
	}
	return nil
}

// diff returns the working tree's unstaged+staged diff against HEAD.
func (g *gitRunner) diff(ctx context.Context) (string, error) {
	out, _, err := g.run(ctx, "diff", "HEAD")
	if err != nil {
		return "", fmt.Errorf("anton: git diff: %w", err)
	}
	return out, nil
}

// commitAll stages every tracked change and commits with message.
func (g *gitRunner) commitAll(ctx context.Context, message string) error {
	if _, stderr, err := g.run(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("anton: git add: %w (%s)", err, stderr)
	}
	if _, stderr, err := g.run(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("anton: git commit: %w (%s)", err, stderr)
	}
	return nil
}

// rollback discards tracked changes and, if deleteUntracked is set, removes
// newly created untracked files too (spec.md §4.8 step 11).
func (g *gitRunner) rollback(ctx context.Context, deleteUntracked bool) error {
	if _, stderr, err := g.run(ctx, "checkout", "--", "."); err != nil {
		return fmt.Errorf("anton: git checkout --: %w (%s)", err, stderr)
	}
	if deleteUntracked {
		if _, stderr, err := g.run(ctx, "clean", "-fd"); err != nil {
			return fmt.Errorf("anton: git clean -fd: %w (%s)", err, stderr)
		}
	}
	return nil
}
