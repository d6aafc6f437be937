package agentsession

import "errors"

// Session-level errors, per the ask() contract (spec.md §4.6). These are
// wrapped, not replaced, so callers can use errors.Is against them.
var (
	ErrSessionBusy                 = errors.New("agentsession: session not idle")
	ErrPromptBudgetExceeded        = errors.New("agentsession: prompt-budget-exceeded")
	ErrAttemptTokenBudgetExceeded  = errors.New("agentsession: attempt-token-budget-exceeded")
	ErrToolLoopCircuitBroken       = errors.New("agentsession: tool-loop circuit breaker tripped")
	ErrMaxIterationsExceeded       = errors.New("agentsession: max iterations exceeded")
	ErrCancelled                   = errors.New("agentsession: cancelled")
)
