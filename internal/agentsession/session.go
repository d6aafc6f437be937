package agentsession

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// State is a position in the Agent Session's conceptual state machine
// (spec.md §4.6): idle → sending → streaming → (tool_call → executing_tool →
// streaming)* → complete | cancelled | failed.
type State string

const (
	StateIdle          State = "idle"
	StateSending       State = "sending"
	StateStreaming     State = "streaming"
	StateToolCall      State = "tool_call"
	StateExecutingTool State = "executing_tool"
	StateComplete      State = "complete"
	StateCancelled     State = "cancelled"
	StateFailed        State = "failed"
)

// Config holds the session's budgets and knobs (spec.md §4.6).
type Config struct {
	Model                     string
	MaxIterations             int     // turns bound per ask() call; default 20
	MaxPromptTokensPerAttempt int     // 0 disables the check
	ContextWindow             int     // server's context window, for compaction
	CompactionFraction        float64 // default 0.85
	CharsPerToken             int     // default 4
	SlimTools                 bool
	ToolLoop                  ToolLoopConfig
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 20
	}
	if c.CompactionFraction <= 0 {
		c.CompactionFraction = 0.85
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = 4
	}
	return c
}

// Hooks are the optional per-ask turn/tool callbacks (spec.md §4.6).
type Hooks struct {
	OnTurnStart  func(turn int)
	OnTextChunk  func(text string)
	OnToolCall   func(call ToolCall)
	OnToolResult func(call ToolCall, result string, err error)
	OnToolLoop   func(detector, tool string, count int, action string)
	OnUsage      func(usage Usage)
}

// AskResult is ask()'s return value (spec.md §4.6).
type AskResult struct {
	Text      string
	ToolCalls int
	Turns     int
	Usage     Usage
}

// Session is one Agent Session: a conversation plus the state machine,
// budgets, compaction, and tool-loop detection that govern one ask() call.
type Session struct {
	mu sync.Mutex

	id       string
	client   ChatClient
	executor ToolExecutor
	vault    Vault
	lens     Lens
	cfg      Config

	model        string
	messages     []Message
	state        State
	busy         bool
	cancelFunc   context.CancelFunc
	loopDetector *toolLoopDetector
}

// New creates a Session. id identifies it to the Vault; vault and lens may
// be nil, in which case compaction drops messages without archiving or summarizing.
func New(id string, client ChatClient, executor ToolExecutor, vault Vault, lens Lens, cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		id:           id,
		client:       client,
		executor:     executor,
		vault:        vault,
		lens:         lens,
		cfg:          cfg,
		model:        cfg.Model,
		state:        StateIdle,
		loopDetector: newToolLoopDetector(cfg.ToolLoop),
	}
}

// State returns the session's current state-machine position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the current conversation.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Restore replaces the conversation atomically. Valid only between turns.
func (s *Session) Restore(messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrSessionBusy
	}
	s.messages = append([]Message(nil), messages...)
	s.state = StateIdle
	s.loopDetector = newToolLoopDetector(s.cfg.ToolLoop)
	return nil
}

// SetModel changes the model used for subsequent turns. Valid only between turns.
func (s *Session) SetModel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrSessionBusy
	}
	s.model = id
	return nil
}

// Cancel aborts the in-flight HTTP stream and any running tool, if an ask()
// call is currently in flight. A subsequent ask() call starts clean.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
}

func (s *Session) charsPerToken() int { return s.cfg.CharsPerToken }

// Ask drives one conversation turn (or more, across tool-call rounds) to
// completion, per the contract in spec.md §4.6.
func (s *Session) Ask(ctx context.Context, prompt Message, tools []ToolSchema, hooks Hooks) (*AskResult, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	s.busy = true
	turnCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel
	s.state = StateSending
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.cancelFunc = nil
		s.mu.Unlock()
	}()

	s.messages = append(s.messages, prompt)

	if s.cfg.MaxPromptTokensPerAttempt > 0 {
		if n := estimateTokens(s.messages, s.charsPerToken()); n > s.cfg.MaxPromptTokensPerAttempt {
			s.setState(StateFailed)
			return nil, ErrPromptBudgetExceeded
		}
	}

	result := &AskResult{}
	var cumulative Usage

	for turn := 1; turn <= s.cfg.MaxIterations; turn++ {
		if turnCtx.Err() != nil {
			s.setState(StateCancelled)
			return nil, ErrCancelled
		}
		if hooks.OnTurnStart != nil {
			hooks.OnTurnStart(turn)
		}

		compacted, err := compact(turnCtx, s.id, s.messages, s.charsPerToken(), s.cfg.ContextWindow, s.cfg.CompactionFraction, s.vault, s.lens)
		if err != nil {
			s.setState(StateFailed)
			return nil, fmt.Errorf("agentsession: compaction: %w", err)
		}
		s.messages = compacted

		s.setState(StateStreaming)
		iter, err := s.client.Stream(turnCtx, ChatRequest{Model: s.model, Messages: s.messages, Tools: tools, SlimTools: s.cfg.SlimTools})
		if err != nil {
			if turnCtx.Err() != nil {
				s.setState(StateCancelled)
				return nil, ErrCancelled
			}
			s.setState(StateFailed)
			return nil, fmt.Errorf("agentsession: stream: %w", err)
		}

		var text strings.Builder
		var pendingCalls []ToolCall
		var streamErr error

	drain:
		for {
			ev, ok := iter.Next()
			if !ok {
				break
			}
			switch ev.Kind {
			case EventTextChunk:
				text.WriteString(ev.Text)
				if hooks.OnTextChunk != nil {
					hooks.OnTextChunk(ev.Text)
				}
			case EventToolCallEnd:
				pendingCalls = append(pendingCalls, ev.ToolCall)
			case EventUsageUpdate, EventDone:
				cumulative.PromptTokens += ev.Usage.PromptTokens
				cumulative.CompletionTokens += ev.Usage.CompletionTokens
				if hooks.OnUsage != nil {
					hooks.OnUsage(ev.Usage)
				}
				if s.cfg.MaxPromptTokensPerAttempt > 0 && cumulative.PromptTokens+cumulative.CompletionTokens > s.cfg.MaxPromptTokensPerAttempt {
					streamErr = ErrAttemptTokenBudgetExceeded
					break drain
				}
			}
		}
		if err := iter.Err(); err != nil && streamErr == nil {
			streamErr = fmt.Errorf("agentsession: stream: %w", err)
		}
		_ = iter.Close()

		if turnCtx.Err() != nil {
			s.setState(StateCancelled)
			return nil, ErrCancelled
		}
		if streamErr != nil {
			s.setState(StateFailed)
			return nil, streamErr
		}

		s.messages = append(s.messages, Message{
			Role:      RoleAssistant,
			Parts:     []Part{{Type: PartText, Text: text.String()}},
			ToolCalls: pendingCalls,
		})

		result.Turns = turn
		result.Text = text.String()
		result.Usage = cumulative

		if len(pendingCalls) == 0 {
			s.setState(StateComplete)
			return result, nil
		}

		s.setState(StateToolCall)
		s.setState(StateExecutingTool)

		for _, call := range pendingCalls {
			if turnCtx.Err() != nil {
				s.setState(StateCancelled)
				return nil, ErrCancelled
			}
			if hooks.OnToolCall != nil {
				hooks.OnToolCall(call)
			}

			for _, ev := range s.loopDetector.record(call) {
				if hooks.OnToolLoop != nil {
					hooks.OnToolLoop(ev.Detector, ev.Tool, ev.Count, string(ev.Action))
				}
				switch ev.Action {
				case loopActionInject:
					s.messages = append(s.messages, TextMessage(RoleUser, fmt.Sprintf(
						"[tool-loop] %s detected %s called %d times in a row — try a different approach.",
						ev.Detector, ev.Tool, ev.Count)))
				case loopActionAbort:
					s.setState(StateFailed)
					return nil, fmt.Errorf("%w: %s on %s (%d repeats)", ErrToolLoopCircuitBroken, ev.Detector, ev.Tool, ev.Count)
				}
			}

			out, execErr := s.executor.Execute(turnCtx, call)
			if hooks.OnToolResult != nil {
				hooks.OnToolResult(call, out, execErr)
			}
			if execErr != nil {
				out = fmt.Sprintf("error: %v", execErr)
			}
			s.messages = append(s.messages, ToolResultMessage(call.ID, out))
			result.ToolCalls++
		}
	}

	s.setState(StateFailed)
	return nil, ErrMaxIterationsExceeded
}
