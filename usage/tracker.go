// Package usage records per-call token consumption and cost.
package usage

import (
	"context"
	"fmt"

	"github.com/threadloom/threadloom/gateway"
	"github.com/threadloom/threadloom/logging"
	"github.com/threadloom/threadloom/registry"
	"github.com/threadloom/threadloom/storage"
)

// Tracker persists usage records with costs derived from registry pricing.
type Tracker struct {
	store  storage.Store
	logger logging.Logger
}

// NewTracker creates a usage tracker.
func NewTracker(store storage.Store, logger logging.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logging.OrNoop(logger),
	}
}

// Cost computes the USD cost of a call from the model's per-1K-token pricing.
// Unknown models use the default pricing.
func Cost(model string, inputTokens, outputTokens int) float64 {
	pricing := registry.PricePerKTokens(model)
	return float64(inputTokens)/1000*pricing.Input + float64(outputTokens)/1000*pricing.Output
}

// Event describes one LLM call to be recorded.
type Event struct {
	ThreadID        string
	UserID          string
	CollaborationID string
	Model           string
	OperationType   string
	Usage           gateway.Usage
}

// Track persists a usage record. A tracking failure is logged and returned
// but callers treat it as non-fatal: usage accounting never blocks the
// message path.
func (t *Tracker) Track(ctx context.Context, event Event) error {
	record := &storage.UsageRecord{
		ThreadID:        event.ThreadID,
		UserID:          event.UserID,
		CollaborationID: event.CollaborationID,
		Model:           event.Model,
		InputTokens:     event.Usage.PromptTokens,
		OutputTokens:    event.Usage.CompletionTokens,
		TotalTokens:     event.Usage.TotalTokens,
		CostUSD:         Cost(event.Model, event.Usage.PromptTokens, event.Usage.CompletionTokens),
		OperationType:   event.OperationType,
	}
	if record.TotalTokens == 0 {
		record.TotalTokens = record.InputTokens + record.OutputTokens
	}

	id, err := t.store.SaveUsage(ctx, record)
	if err != nil {
		t.logger.Error("usage_track_failed",
			"thread_id", event.ThreadID,
			"model", event.Model,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to track usage: %w", err)
	}

	t.logger.Debug("usage_tracked",
		"usage_id", id,
		"model", event.Model,
		"total_tokens", record.TotalTokens,
		"cost_usd", record.CostUSD,
		"operation", event.OperationType,
	)
	return nil
}

// ThreadTotals aggregates usage for a thread.
type ThreadTotals struct {
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Totals sums recent usage records for a thread.
func (t *Tracker) Totals(ctx context.Context, threadID string, limit int) (*ThreadTotals, error) {
	records, err := t.store.ListUsage(ctx, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}

	totals := &ThreadTotals{}
	for _, r := range records {
		totals.Calls++
		totals.InputTokens += r.InputTokens
		totals.OutputTokens += r.OutputTokens
		totals.TotalTokens += r.TotalTokens
		totals.CostUSD += r.CostUSD
	}
	return totals, nil
}
