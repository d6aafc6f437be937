package anton

import (
	"os"
	"path/filepath"
)

// DetectCommands infers build/test/lint commands from project files present
// at projectDir, unless cfg already sets them explicitly (spec.md §4.8
// startup step 4). Detection order favors the most specific marker file.
func DetectCommands(projectDir string, explicit VerificationCommands) VerificationCommands {
	out := explicit

	has := func(name string) bool {
		_, err := os.Stat(filepath.Join(projectDir, name))
		return err == nil
	}

	switch {
	case has("go.mod"):
		if out.Build == "" {
			out.Build = "go build ./..."
		}
		if out.Test == "" {
			out.Test = "go test ./..."
		}
		if out.Lint == "" {
			if hasLintConfig(projectDir) {
				out.Lint = "golangci-lint run ./..."
			} else {
				out.Lint = "go vet ./..."
			}
		}
	case has("Cargo.toml"):
		if out.Build == "" {
			out.Build = "cargo build"
		}
		if out.Test == "" {
			out.Test = "cargo test"
		}
		if out.Lint == "" {
			out.Lint = "cargo clippy"
		}
	case has("package.json"):
		if out.Build == "" {
			out.Build = "npm run build"
		}
		if out.Test == "" {
			out.Test = "npm test"
		}
		if out.Lint == "" {
			out.Lint = "npm run lint"
		}
	}

	return out
}

func hasLintConfig(projectDir string) bool {
	for _, name := range []string{".golangci.yml", ".golangci.yaml"} {
		if _, err := os.Stat(filepath.Join(projectDir, name)); err == nil {
			return true
		}
	}
	return false
}
