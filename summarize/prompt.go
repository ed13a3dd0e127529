package summarize

import (
	"fmt"
	"strings"

	"github.com/threadloom/threadloom/storage"
	"github.com/threadloom/threadloom/types"
)

// renderLimit caps how much of each message body is rendered into the
// summarization prompt. Long messages contribute their head only.
const renderLimit = 500

const promptTemplate = `Summarize the following conversation segment concisely, preserving key facts, decisions, and open questions. Keep the summary under 150 words.

Conversation:
%s

Summary:`

// buildPrompt renders the covered messages into the summarization prompt.
func buildPrompt(messages []*storage.Message) string {
	var transcript strings.Builder
	for i, msg := range messages {
		if i > 0 {
			transcript.WriteByte('\n')
		}
		transcript.WriteString(roleLabel(msg.Role))
		transcript.WriteString(": ")
		transcript.WriteString(truncate(msg.Content, renderLimit))
	}
	return fmt.Sprintf(promptTemplate, transcript.String())
}

func roleLabel(role string) string {
	switch role {
	case types.RoleAssistant:
		return "Assistant"
	case types.RoleSystem:
		return "System"
	default:
		return "User"
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
