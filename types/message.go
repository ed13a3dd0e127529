// Package types holds the message shapes shared by the orchestrator core and
// its sub-packages (token estimation, gateway, summarization, collaboration).
package types

// Role constants for conversation entries.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SummaryPrefix marks an assistant-role context entry that carries a
// conversation summary rather than a model reply. Context trimming relies on
// this prefix to keep summaries out of the evictable history.
const SummaryPrefix = "[Previous conversation summary]: "

// Summary trigger reasons stored alongside each summary record.
const (
	TriggerMessageCount   = "message_count"
	TriggerTokenThreshold = "token_threshold"
	TriggerManual         = "manual"
)

// Entry is a single role/content pair in a context window. Context windows are
// assembled fresh for every completion call and never persisted.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IsSummary reports whether the entry is a summary injected by the context
// assembler. A model-generated reply that happens to start with the same
// prefix would also match; the trimming behavior accepts that ambiguity.
func (e Entry) IsSummary() bool {
	return e.Role == RoleAssistant && hasSummaryPrefix(e.Content)
}

func hasSummaryPrefix(content string) bool {
	return len(content) >= len(SummaryPrefix) && content[:len(SummaryPrefix)] == SummaryPrefix
}
