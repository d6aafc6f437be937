package anton

import (
	"context"

	"github.com/visorcraft/idlehands/internal/agentsession"
)

// Vault is the append-mostly note/search store Anton consumes (spec.md §6).
// It is a distinct, narrower interface from agentsession.Vault (which only
// archives compacted messages) because Anton's prompt-construction and
// discovery stages additionally need structured notes and search.
type Vault interface {
	Note(ctx context.Context, key, value string) (id string, err error)
	ArchiveToolMessages(ctx context.Context, messages []agentsession.Message) (count int, err error)
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Lens is the out-of-scope summarization surface Anton consumes (spec.md §6).
type Lens interface {
	SummarizeDiffToText(ctx context.Context, before, after, path string) (string, error)
	SummarizeToolOutput(ctx context.Context, tool string, args, result string) (string, error)
}

// SessionHandle is the narrow surface Anton drives a spawned agent session
// through. agentsession.Session already satisfies it.
type SessionHandle interface {
	Ask(ctx context.Context, prompt agentsession.Message, tools []agentsession.ToolSchema, hooks agentsession.Hooks) (*agentsession.AskResult, error)
	Cancel()
}

// CreateSessionFunc spawns a fresh agent session for one task attempt. slim
// selects the mutation-less variant used for the discovery and
// requirements-review preflight sessions (spec.md §6 "slim" tool variant).
type CreateSessionFunc func(ctx context.Context, model string, slim bool) (SessionHandle, error)

// VerifySessionFunc runs the optional L2 AI pass/fail rubric against a diff
// (spec.md §4.9 step 4). A nil VerifySessionFunc skips L2 entirely.
type VerifySessionFunc func(ctx context.Context, taskText, diff string) (passed bool, reason string, err error)
