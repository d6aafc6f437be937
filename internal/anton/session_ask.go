package anton

import (
	"context"
	"errors"
	"fmt"

	"github.com/visorcraft/idlehands/internal/agentsession"
	"github.com/visorcraft/idlehands/internal/events"
)

// sessionAsk drives one session.Ask call, forwarding its tool-loop hook to
// progress.onToolLoop and, on a tripped circuit breaker, nudging the session
// to continue differently up to cfg.MaxRetries before giving up (spec.md
// §4.8 step 10).
func sessionAsk(
	ctx context.Context,
	session SessionHandle,
	prompt string,
	tools []agentsession.ToolSchema,
	cfg ToolLoopAutoContinueConfig,
	retries *int,
	progress events.ProgressCallback,
	taskKey string,
) (*agentsession.AskResult, error) {
	hooks := agentsession.Hooks{
		OnToolLoop: func(detector, tool string, count int, action string) {
			progress.OnToolLoop(taskKey, toolLoopLevelForAction(action), tool, count, fmt.Sprintf("%s flagged %s", detector, tool))
		},
	}

	msg := agentsession.TextMessage(agentsession.RoleUser, prompt)
	for {
		result, err := session.Ask(ctx, msg, tools, hooks)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, agentsession.ErrToolLoopCircuitBroken) && cfg.Enabled && *retries < cfg.MaxRetries {
			*retries++
			progress.OnToolLoop(taskKey, events.ToolLoopLevelCircuitBreaker, "", *retries, "auto-continuing after circuit breaker")
			msg = agentsession.TextMessage(agentsession.RoleUser, "Continue with a different approach; the previous tool loop was aborted.")
			continue
		}
		return nil, err
	}
}

// toolLoopLevelForAction maps a detector's internal escalation action
// (agentsession's unexported loopAction, threaded through Hooks.OnToolLoop
// as a string) onto the external severity spec.md §6's onToolLoop expects.
func toolLoopLevelForAction(action string) events.ToolLoopLevel {
	switch action {
	case "inject":
		return events.ToolLoopLevelCritical
	case "abort":
		return events.ToolLoopLevelCircuitBreaker
	default:
		return events.ToolLoopLevelWarning
	}
}
