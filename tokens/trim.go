package tokens

import "github.com/threadloom/threadloom/types"

// Trim reduces a context window to fit within maxTokens, evicting the oldest
// history first. System entries (when preserveSystem is set) and summary
// entries (assistant entries carrying the summary prefix, when
// preserveSummary is set) are never evicted and keep their original relative
// order. Remaining history is admitted newest-first until the next message no
// longer fits; older messages are then dropped wholesale rather than skipped
// over, so the retained history is always a contiguous recent tail.
//
// If the preserved entries alone meet or exceed the budget they are returned
// by themselves. Trim is idempotent: trimming an already-trimmed window with
// the same budget returns it unchanged.
func (e *Estimator) Trim(entries []types.Entry, model string, maxTokens int, preserveSystem, preserveSummary bool) []types.Entry {
	if len(entries) == 0 {
		return entries
	}

	var preserved, history []types.Entry
	for _, entry := range entries {
		switch {
		case preserveSystem && entry.Role == types.RoleSystem:
			preserved = append(preserved, entry)
		case preserveSummary && entry.IsSummary():
			preserved = append(preserved, entry)
		default:
			history = append(history, entry)
		}
	}

	preservedTokens := e.EstimateMessages(preserved, model)
	if preservedTokens >= maxTokens {
		return preserved
	}

	// Admit history newest-first while it fits, then reassemble in original
	// order behind the preserved entries.
	remaining := maxTokens - preservedTokens
	admitted := make([]types.Entry, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		cost := e.Estimate(history[i].Content, model) + MessageOverhead
		if remaining-cost < 0 {
			break
		}
		admitted = append(admitted, history[i])
		remaining -= cost
	}

	result := make([]types.Entry, 0, len(preserved)+len(admitted))
	result = append(result, preserved...)
	for i := len(admitted) - 1; i >= 0; i-- {
		result = append(result, admitted[i])
	}
	return result
}
