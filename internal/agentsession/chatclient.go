// Package agentsession implements the Agent Session: the `ask(prompt, hooks)`
// state machine, token budgets, context compaction, and tool-loop detection
// described in SPEC_FULL.md §4.6. The LLM itself is out of scope; the session
// consumes it through the narrow ChatClient interface below rather than
// cloudwego/eino's ADK model interface, since the wire contract here is an
// OpenAI-compatible SSE stream, not an ADK graph (see internal/tasks/runner.go
// for the ADK-bound equivalent this package generalizes away from).
package agentsession

import "context"

// Role is a message's author in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType distinguishes a multi-part message's content kind.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Part is one piece of a multi-part message (spec.md §4.6: "text or
// multi-part with images").
type Part struct {
	Type     PartType
	Text     string
	ImageURL string
}

// ToolCall is a single tool invocation requested by the model, or the
// recorded result of having executed one.
type ToolCall struct {
	ID       string
	Name     string
	ArgsJSON string
}

// Message is one turn in the conversation sent to or received from the model.
type Message struct {
	Role       Role
	Parts      []Part
	ToolCalls  []ToolCall // set on an assistant message that requested tool calls
	ToolCallID string     // set on a tool-result message, referencing the call it answers
}

// Text returns the concatenation of the message's text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// TextMessage builds a single-part text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{{Type: PartText, Text: text}}}
}

// ToolResultMessage builds a tool-result message answering callID.
func ToolResultMessage(callID, result string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Parts: []Part{{Type: PartText, Text: result}}}
}

// ToolSchema describes one callable tool, in the shape sent to the model.
type ToolSchema struct {
	Name           string
	Description    string
	ParametersJSON string
}

// Usage is the token accounting reported by the model for one turn, or
// accumulated across an attempt.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatRequest is one turn's request to the model.
type ChatRequest struct {
	Model     string
	Messages  []Message
	Tools     []ToolSchema
	SlimTools bool
}

// StreamEventKind is the closed set of events a StreamIterator yields (the
// pull-model redesign from spec.md §9, replacing Eino's push-style ADK
// runner iterator).
type StreamEventKind string

const (
	EventTextChunk     StreamEventKind = "text_chunk"
	EventToolCallStart StreamEventKind = "tool_call_start"
	EventToolCallEnd   StreamEventKind = "tool_call_end"
	EventUsageUpdate   StreamEventKind = "usage_update"
	EventDone          StreamEventKind = "done"
)

// StreamEvent is one item pulled from a StreamIterator.
type StreamEvent struct {
	Kind     StreamEventKind
	Text     string   // set on EventTextChunk
	ToolCall ToolCall // set on EventToolCallStart/EventToolCallEnd
	Usage    Usage    // set on EventUsageUpdate/EventDone
}

// StreamIterator is a pull-model iterator over one turn's streamed reply.
// Next returns (event, true) for each event, then (zero, false) once the
// stream is exhausted or an error occurred (retrievable via Err).
type StreamIterator interface {
	Next() (StreamEvent, bool)
	Err() error
	Close() error
}

// ChatClient is the narrow interface the Agent Session depends on. A real
// implementation talks OpenAI-compatible streaming chat completions over
// HTTP; it is out of scope here (spec.md §1) and supplied by the caller.
type ChatClient interface {
	Stream(ctx context.Context, req ChatRequest) (StreamIterator, error)
}

// ToolExecutor runs one tool call synchronously and returns its textual
// result. Tool execution itself (file I/O, patch application, shell exec,
// path-safety tiers) is out of scope here; the session calls this interface
// per spec.md §4.6's per-turn contract.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) (result string, err error)
}

// Vault archives raw conversation content displaced by compaction so it can
// be retrieved later. Out of scope implementation-wise (spec.md §6).
type Vault interface {
	Archive(ctx context.Context, sessionID string, messages []Message) (archiveID string, err error)
}

// Lens produces a short summary standing in for archived messages.
// Out of scope implementation-wise (spec.md §6); compaction works without
// one, simply dropping archived messages instead of replacing them with a digest.
type Lens interface {
	Summarize(ctx context.Context, messages []Message) (digest string, err error)
}
