package threadloom

import (
	"context"
	"fmt"

	"github.com/threadloom/threadloom/storage"
	"github.com/threadloom/threadloom/types"
)

// assembleContext builds the ordered context window for one completion call:
// system prompt first, then the latest summary (marked with SummaryPrefix),
// then only messages created after that summary. Without a summary it is the
// chronological tail of the conversation capped at MaxContextMessages. No
// message appears twice across summary and tail.
func (o *Orchestrator) assembleContext(ctx context.Context, thread *storage.Thread) ([]types.Entry, error) {
	var entries []types.Entry
	if thread.SystemPrompt != "" {
		entries = append(entries, types.Entry{Role: types.RoleSystem, Content: thread.SystemPrompt})
	}

	summary, err := o.store.GetLatestSummary(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest summary: %w", err)
	}

	var messages []*storage.Message
	if summary != nil {
		entries = append(entries, types.Entry{
			Role:    types.RoleAssistant,
			Content: types.SummaryPrefix + summary.SummaryText,
		})
		after := summary.CreatedAt
		messages, err = o.store.GetRecentMessages(ctx, thread.ID, &after, o.cfg.MaxContextMessages)
	} else {
		messages, err = o.store.GetRecentMessages(ctx, thread.ID, nil, o.cfg.MaxContextMessages)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	for _, msg := range messages {
		entries = append(entries, types.Entry{Role: msg.Role, Content: msg.Content})
	}
	return entries, nil
}

// buildPrompt assembles and trims the context window to the token budget.
func (o *Orchestrator) buildPrompt(ctx context.Context, thread *storage.Thread, model string) ([]types.Entry, error) {
	entries, err := o.assembleContext(ctx, thread)
	if err != nil {
		return nil, err
	}
	return o.estimator.Trim(entries, model, o.cfg.MaxContextTokens, true, true), nil
}
