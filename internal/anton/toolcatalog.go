package anton

import "github.com/visorcraft/idlehands/internal/agentsession"

// toolCatalog is the closed list of tool names and schemas surfaced to the
// LLM (spec.md §6). Tool *execution* is out of scope — the orchestrator
// only needs to advertise the schema; the ToolExecutor that actually runs
// these is supplied by the caller.
var toolCatalog = []agentsession.ToolSchema{
	{Name: "read_file", Description: "Read a file's contents.", ParametersJSON: `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`},
	{Name: "read_files", Description: "Read several files' contents.", ParametersJSON: `{"type":"object","properties":{"paths":{"type":"array","items":{"type":"string"}}},"required":["paths"]}`},
	{Name: "write_file", Description: "Write (create or overwrite) a file.", ParametersJSON: `{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`},
	{Name: "edit_file", Description: "Replace an exact substring in a file.", ParametersJSON: `{"type":"object","properties":{"path":{"type":"string"},"old":{"type":"string"},"new":{"type":"string"}},"required":["path","old","new"]}`},
	{Name: "edit_range", Description: "Replace a byte/line range in a file.", ParametersJSON: `{"type":"object","properties":{"path":{"type":"string"},"startLine":{"type":"integer"},"endLine":{"type":"integer"},"content":{"type":"string"}},"required":["path","startLine","endLine","content"]}`},
	{Name: "apply_patch", Description: "Apply a unified diff patch to one or more allow-listed files.", ParametersJSON: `{"type":"object","properties":{"patch":{"type":"string"},"touchedFiles":{"type":"array","items":{"type":"string"}}},"required":["patch","touchedFiles"]}`},
	{Name: "insert_file", Description: "Insert content at a line in a file.", ParametersJSON: `{"type":"object","properties":{"path":{"type":"string"},"atLine":{"type":"integer"},"content":{"type":"string"}},"required":["path","atLine","content"]}`},
	{Name: "list_dir", Description: "List a directory's entries.", ParametersJSON: `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`},
	{Name: "search_files", Description: "Search file contents by pattern.", ParametersJSON: `{"type":"object","properties":{"pattern":{"type":"string"},"path":{"type":"string"}},"required":["pattern"]}`},
	{Name: "exec", Description: "Run a shell command.", ParametersJSON: `{"type":"object","properties":{"command":{"type":"string"},"cwd":{"type":"string"},"timeoutSec":{"type":"integer"}},"required":["command"]}`},
	{Name: "spawn_task", Description: "Spawn an auxiliary sub-session for a bounded sub-question.", ParametersJSON: `{"type":"object","properties":{"prompt":{"type":"string"}},"required":["prompt"]}`},
	{Name: "vault_search", Description: "Search the Vault's notes.", ParametersJSON: `{"type":"object","properties":{"query":{"type":"string"},"limit":{"type":"integer"}},"required":["query"]}`},
	{Name: "vault_note", Description: "Record a note in the Vault.", ParametersJSON: `{"type":"object","properties":{"key":{"type":"string"},"value":{"type":"string"}},"required":["key","value"]}`},
}

// mutatingTools is the subset slimTools() drops: every tool that mutates the
// filesystem, plus spawn_task (spec.md §6 "slim" variant).
var mutatingTools = map[string]bool{
	"write_file":  true,
	"edit_file":   true,
	"edit_range":  true,
	"apply_patch": true,
	"insert_file": true,
	"exec":        true,
	"spawn_task":  true,
}

// slimTools returns the read-only subset of toolCatalog, used for the
// discovery and requirements-review preflight sessions.
func slimTools() []agentsession.ToolSchema {
	out := make([]agentsession.ToolSchema, 0, len(toolCatalog))
	for _, t := range toolCatalog {
		if !mutatingTools[t.Name] {
			out = append(out, t)
		}
	}
	return out
}
