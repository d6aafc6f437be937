package agentsession

import "context"

// compact shrinks messages until estimated prompt tokens fall back under the
// configured fraction of the context window, per spec.md §4.6: oldest
// tool-call groups first, then oldest non-system messages. Dropped messages
// are archived via vault (if set) and optionally replaced by a single
// lens-summarized digest message. Compaction never touches system messages
// and is only ever called between turns.
func compact(ctx context.Context, sessionID string, messages []Message, charsPerToken, contextWindow int, fraction float64, vault Vault, lens Lens) ([]Message, error) {
	if !needsCompaction(estimateTokens(messages, charsPerToken), contextWindow, fraction) {
		return messages, nil
	}

	target := int(float64(contextWindow) * fraction)
	kept := append([]Message(nil), messages...)
	var dropped []Message

	for estimateTokens(kept, charsPerToken) > target {
		idx, groupLen := firstToolCallGroup(kept)
		if idx < 0 {
			break
		}
		dropped = append(dropped, kept[idx:idx+groupLen]...)
		kept = dropSlice(kept, idx, groupLen)
	}

	for estimateTokens(kept, charsPerToken) > target {
		idx := firstNonSystem(kept)
		if idx < 0 {
			break
		}
		dropped = append(dropped, kept[idx])
		kept = dropSlice(kept, idx, 1)
	}

	if len(dropped) == 0 {
		return kept, nil
	}

	if vault != nil {
		_, _ = vault.Archive(ctx, sessionID, dropped)
	}

	if lens != nil {
		if digest, err := lens.Summarize(ctx, dropped); err == nil && digest != "" {
			kept = append([]Message{TextMessage(RoleUser, "[archived context summary]\n\n"+digest)}, kept...)
		}
	}

	return kept, nil
}

func dropSlice(messages []Message, idx, n int) []Message {
	out := make([]Message, 0, len(messages)-n)
	out = append(out, messages[:idx]...)
	out = append(out, messages[idx+n:]...)
	return out
}

// firstToolCallGroup finds the earliest assistant message carrying tool
// calls, plus the contiguous run of tool-result messages that answer them.
// Returns (-1, 0) if no tool-call group remains.
func firstToolCallGroup(messages []Message) (int, int) {
	for i, m := range messages {
		if m.Role != RoleAssistant || len(m.ToolCalls) == 0 {
			continue
		}
		ids := make(map[string]bool, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			ids[tc.ID] = true
		}
		n := 1
		for i+n < len(messages) && messages[i+n].Role == RoleTool && ids[messages[i+n].ToolCallID] {
			n++
		}
		return i, n
	}
	return -1, 0
}

// firstNonSystem finds the earliest non-system message, or -1 if none remain.
func firstNonSystem(messages []Message) int {
	for i, m := range messages {
		if m.Role != RoleSystem {
			return i
		}
	}
	return -1
}
