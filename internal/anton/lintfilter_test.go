package anton

import "testing"

func TestCountLintErrorsGoVet(t *testing.T) {
	out := "internal/foo/bar.go:12:3: unused variable x\ninternal/foo/baz.go:4:1: undefined: Frobnicate\n"
	if n := countLintErrors(out); n != 2 {
		t.Fatalf("expected 2 errors, got %d", n)
	}
}

func TestCountLintErrorsTypeScript(t *testing.T) {
	out := "src/app.ts(10,5): error TS2322: Type 'string' is not assignable to type 'number'.\n"
	if n := countLintErrors(out); n != 1 {
		t.Fatalf("expected 1 error, got %d", n)
	}
}

func TestCountLintErrorsRust(t *testing.T) {
	out := "error[E0382]: use of moved value: `x`\n --> src/main.rs:5:13\n"
	if n := countLintErrors(out); n != 1 {
		t.Fatalf("expected 1 error, got %d", n)
	}
}

func TestCountLintErrorsIgnoresCleanOutput(t *testing.T) {
	out := "no issues found\nall clear\n"
	if n := countLintErrors(out); n != 0 {
		t.Fatalf("expected 0 errors, got %d", n)
	}
}

func TestFilterLintOutputKeepsHeaderAndErrors(t *testing.T) {
	out := "internal/foo/bar.go\nbar.go:12:3: unused variable x\nsome unrelated info line\n"
	got := filterLintOutput(out)
	if got == "" {
		t.Fatal("expected non-empty filtered output")
	}
	if countLintErrors(got) != countLintErrors(out) {
		t.Fatalf("filtering dropped an error line: %q", got)
	}
}
