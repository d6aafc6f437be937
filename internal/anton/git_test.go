package anton

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestGitRunnerIsDirtyCleanTree(t *testing.T) {
	dir := initGitRepo(t)
	g := newGitRunner(dir)

	dirty, err := g.isDirty(context.Background())
	if err != nil {
		t.Fatalf("isDirty: %v", err)
	}
	if dirty {
		t.Fatal("expected clean tree after init commit")
	}
}

func TestGitRunnerIsDirtyWithUntrackedFile(t *testing.T) {
	dir := initGitRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := newGitRunner(dir)

	dirty, err := g.isDirty(context.Background())
	if err != nil {
		t.Fatalf("isDirty: %v", err)
	}
	if !dirty {
		t.Fatal("expected untracked file to count as dirty")
	}
}

func TestGitRunnerDiffAndCommitAll(t *testing.T) {
	dir := initGitRepo(t)
	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# test\nchanged\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := newGitRunner(dir)

	diff, err := g.diff(context.Background())
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(diff, "changed") {
		t.Fatalf("expected diff to mention the change, got %q", diff)
	}

	if err := g.commitAll(context.Background(), "anton: test commit"); err != nil {
		t.Fatalf("commitAll: %v", err)
	}

	dirty, err := g.isDirty(context.Background())
	if err != nil {
		t.Fatalf("isDirty after commit: %v", err)
	}
	if dirty {
		t.Fatal("expected clean tree after commitAll")
	}
}

func TestGitRunnerRollbackDiscardsChanges(t *testing.T) {
	dir := initGitRepo(t)
	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("overwritten\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "untracked.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := newGitRunner(dir)

	if err := g.rollback(context.Background(), true); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	dirty, err := g.isDirty(context.Background())
	if err != nil {
		t.Fatalf("isDirty after rollback: %v", err)
	}
	if dirty {
		t.Fatal("expected clean tree after rollback with deleteUntracked")
	}
	if _, err := os.Stat(filepath.Join(dir, "untracked.txt")); !os.IsNotExist(err) {
		t.Fatal("expected untracked.txt to be removed by rollback")
	}
}

func TestGitRunnerCreateBranch(t *testing.T) {
	dir := initGitRepo(t)
	g := newGitRunner(dir)

	if err := g.createBranch(context.Background(), "anton-test-branch"); err != nil {
		t.Fatalf("createBranch: %v", err)
	}

	out, _, err := g.run(context.Background(), "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		t.Fatalf("rev-parse: %v", err)
	}
	if strings.TrimSpace(out) != "anton-test-branch" {
		t.Fatalf("expected to be on anton-test-branch, got %q", out)
	}
}

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "README.md")
	runGit(t, dir, "commit", "-m", "initial")
	return dir
}

func runGit(t *testing.T, cwd string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = cwd
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, string(out))
	}
}
