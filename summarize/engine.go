// Package summarize generates background conversation summaries so long
// threads keep fitting into model context windows.
package summarize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/threadloom/threadloom/gateway"
	"github.com/threadloom/threadloom/logging"
	"github.com/threadloom/threadloom/storage"
	"github.com/threadloom/threadloom/types"
	"github.com/threadloom/threadloom/usage"
)

// Summarization call parameters. Low temperature keeps summaries factual;
// the token cap keeps them cheap and short.
const (
	summaryTemperature = 0.3
	summaryMaxTokens   = 200

	// asyncTimeout bounds a background summarization run, which is detached
	// from the request that triggered it.
	asyncTimeout = 2 * time.Minute
)

// Engine schedules and runs summarization for threads.
type Engine struct {
	store     storage.Store
	client    gateway.Client
	tracker   *usage.Tracker
	model     string
	threshold int
	logger    logging.Logger

	wg sync.WaitGroup
}

// NewEngine creates a summarization engine. model is the dedicated summarizer
// model; threshold is the message-count interval between summaries.
func NewEngine(store storage.Store, client gateway.Client, tracker *usage.Tracker, model string, threshold int, logger logging.Logger) *Engine {
	return &Engine{
		store:     store,
		client:    client,
		tracker:   tracker,
		model:     model,
		threshold: threshold,
		logger:    logging.OrNoop(logger),
	}
}

// ShouldTrigger reports whether a thread with the given message count is due
// for summarization. Summaries fire every threshold messages.
func (e *Engine) ShouldTrigger(messageCount int) bool {
	return messageCount > 0 && messageCount%e.threshold == 0
}

// TriggerAsync starts a background summarization run and returns immediately.
// Failures are logged and swallowed: summarization never affects the message
// path that triggered it.
func (e *Engine) TriggerAsync(threadID, userID, triggerReason string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
		defer cancel()

		if _, err := e.Generate(ctx, threadID, userID, triggerReason); err != nil {
			e.logger.Error("summarization_failed",
				"thread_id", threadID,
				"trigger", triggerReason,
				"error", err.Error(),
			)
		}
	}()
}

// Wait blocks until all in-flight background summarizations finish. Used in
// tests and during shutdown.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Generate summarizes the most recent threshold messages of a thread and
// persists the result. It returns (nil, nil) when the thread has no messages
// to cover.
func (e *Engine) Generate(ctx context.Context, threadID, userID, triggerReason string) (*storage.Summary, error) {
	messages, err := e.store.GetRecentMessages(ctx, threadID, nil, e.threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages for summarization: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	prompt := buildPrompt(messages)
	result, err := e.client.Complete(ctx, gateway.Request{
		Model: e.model,
		Messages: []types.Entry{
			{Role: types.RoleUser, Content: prompt},
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("summarization call failed: %w", err)
	}

	coveredIDs := make([]string, len(messages))
	for i, msg := range messages {
		coveredIDs[i] = msg.ID
	}

	summary := &storage.Summary{
		ThreadID:            threadID,
		SummaryText:         result.Content,
		CoveredMessageCount: len(messages),
		CoveredMessageIDs:   coveredIDs,
		TriggerReason:       triggerReason,
		Model:               e.model,
		Tokens:              result.Usage.CompletionTokens,
	}
	summaryID, err := e.store.SaveSummary(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}
	summary.ID = summaryID

	if e.tracker != nil {
		// Accounting failures are already logged by the tracker.
		_ = e.tracker.Track(ctx, usage.Event{
			ThreadID:      threadID,
			UserID:        userID,
			Model:         e.model,
			OperationType: storage.OperationSummarization,
			Usage:         result.Usage,
		})
	}

	e.logger.Info("summary_created",
		"thread_id", threadID,
		"summary_id", summaryID,
		"covered_messages", len(messages),
		"trigger", triggerReason,
	)
	return summary, nil
}
