package anton

import (
	"fmt"
	"regexp"
	"strings"
)

// buildPrompt assembles the agent prompt from the task text, an excerpt of
// the task file around it, an optional plan file, and optional retry
// context (spec.md §4.8 step 7).
func buildPrompt(taskText, taskFileExcerpt, planFile, retryContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", taskText)
	if taskFileExcerpt != "" {
		fmt.Fprintf(&b, "Task file context:\n%s\n\n", taskFileExcerpt)
	}
	if planFile != "" {
		fmt.Fprintf(&b, "Plan:\n%s\n\n", planFile)
	}
	if retryContext != "" {
		fmt.Fprintf(&b, "%s\n\n", retryContext)
	}
	b.WriteString(statusProtocolInstructions)
	return b.String()
}

// buildDiscoveryPrompt asks a slim session whether a task is already done in
// the working tree, before any attempt spends a full session on it (spec.md
// §4.8 step 6's discovery stage).
func buildDiscoveryPrompt(taskText, taskFileExcerpt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", taskText)
	if taskFileExcerpt != "" {
		fmt.Fprintf(&b, "Task file context:\n%s\n\n", taskFileExcerpt)
	}
	b.WriteString("Inspect the repository (read-only; do not modify anything) and decide whether this task is already fully done.\n")
	b.WriteString(discoveryProtocolInstructions)
	return b.String()
}

const discoveryProtocolInstructions = `End your final message with exactly one status line:
STATUS: done
REASON: <one sentence citing the evidence>
STATUS: not_done
REASON: <one sentence>`

var discoveryLinePattern = regexp.MustCompile(`(?m)^STATUS:\s*(\w+)\s*$`)

// parseDiscovery reports whether the discovery session judged the task
// already complete.
func parseDiscovery(text string) bool {
	m := discoveryLinePattern.FindStringSubmatch(text)
	return m != nil && strings.EqualFold(m[1], "done")
}

// buildReviewPrompt asks a slim session to produce or refine a plan file for
// the upcoming attempt, without touching the working tree (spec.md §4.8
// step 6's requirements-review stage).
func buildReviewPrompt(taskText, taskFileExcerpt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", taskText)
	if taskFileExcerpt != "" {
		fmt.Fprintf(&b, "Task file context:\n%s\n\n", taskFileExcerpt)
	}
	b.WriteString("Do not modify the repository. Write a short, concrete plan for implementing this task: the files you expect to touch, the approach, and any open questions. End with exactly:\nSTATUS: plan\n<the plan, as plain text>")
	return b.String()
}

var reviewPlanPattern = regexp.MustCompile(`(?s)STATUS:\s*plan\s*\n(.*)$`)

// parseReviewPlan extracts the plan body following the STATUS: plan marker;
// if the marker is absent the whole response is treated as the plan.
func parseReviewPlan(text string) string {
	if m := reviewPlanPattern.FindStringSubmatch(text); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

const statusProtocolInstructions = `When you are done, end your final message with exactly one status line:
STATUS: pass
STATUS: blocked
REASON: <one sentence>
STATUS: failed
REASON: <one sentence>
STATUS: decompose
- <subtask text>
- <subtask text>
Omit STATUS entirely only if you have nothing further to report this turn.`

// buildRetryContext formats the previous attempt's verification failure for
// the next attempt's prompt (spec.md §4.8 step 7/step 10).
func buildRetryContext(prevStatus AttemptStatus, commandOutput string) string {
	if commandOutput == "" {
		return ""
	}
	return fmt.Sprintf(
		"Previous attempt %s. Verification output:\n%s\n\nDo not rewrite the solution from scratch — fix the specific issues above.",
		prevStatus, commandOutput,
	)
}

// trimRetryContext applies the three trim passes from spec.md §4.8 step 8,
// in order, returning the retry context at trimLevel (0 = untouched).
func trimRetryContext(retryContext string, trimLevel int) string {
	switch trimLevel {
	case 0:
		return retryContext
	case 1:
		return truncateCommandOutput(retryContext, 1000)
	case 2:
		return dropCommandOutput(retryContext)
	default:
		return ""
	}
}

var commandOutputBlock = regexp.MustCompile(`(?s)Verification output:\n(.*?)\n\nDo not rewrite`)

func truncateCommandOutput(retryContext string, maxChars int) string {
	return commandOutputBlock.ReplaceAllStringFunc(retryContext, func(m string) string {
		sub := commandOutputBlock.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		out := sub[1]
		if len(out) > maxChars {
			out = out[:maxChars] + "\n...(truncated)"
		}
		return strings.Replace(m, sub[1], out, 1)
	})
}

func dropCommandOutput(retryContext string) string {
	return commandOutputBlock.ReplaceAllString(retryContext, "Verification output: (omitted, over budget)\n\nDo not rewrite")
}

var (
	statusLinePattern  = regexp.MustCompile(`(?m)^STATUS:\s*(\w+)\s*$`)
	reasonLinePattern  = regexp.MustCompile(`(?m)^REASON:\s*(.+)$`)
	subtaskLinePattern = regexp.MustCompile(`(?m)^-\s+(.+)$`)
)

// parseAgentResult extracts the structured outcome from a session's final
// text (spec.md §4.8 step 11). Absence of a recognized STATUS line is
// treated as an implicit pass candidate, per spec.md's "<implicit pass
// candidate>" phrasing — verification is the actual arbiter of "pass".
func parseAgentResult(text string) AgentResult {
	m := statusLinePattern.FindStringSubmatch(text)
	if m == nil {
		return AgentResult{Kind: AgentResultPass}
	}

	switch strings.ToLower(m[1]) {
	case "blocked":
		return AgentResult{Kind: AgentResultBlocked, Reason: firstMatch(reasonLinePattern, text)}
	case "failed":
		return AgentResult{Kind: AgentResultFailed, Reason: firstMatch(reasonLinePattern, text)}
	case "decompose":
		var subtasks []string
		for _, sm := range subtaskLinePattern.FindAllStringSubmatch(text, -1) {
			subtasks = append(subtasks, strings.TrimSpace(sm[1]))
		}
		return AgentResult{Kind: AgentResultDecompose, SubTaskTexts: subtasks}
	default:
		return AgentResult{Kind: AgentResultPass}
	}
}

func firstMatch(p *regexp.Regexp, text string) string {
	m := p.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
