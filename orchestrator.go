package threadloom

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/threadloom/threadloom/collab"
	"github.com/threadloom/threadloom/gateway"
	"github.com/threadloom/threadloom/registry"
	"github.com/threadloom/threadloom/storage"
	"github.com/threadloom/threadloom/summarize"
	"github.com/threadloom/threadloom/tokens"
	"github.com/threadloom/threadloom/types"
	"github.com/threadloom/threadloom/usage"
)

// Orchestrator is the engine behind the message and collaboration paths. It
// serializes processing per thread, assembles bounded context windows,
// schedules background summarization and records usage.
type Orchestrator struct {
	cfg        Config
	store      storage.Store
	client     gateway.Client
	estimator  *tokens.Estimator
	locks      *LockRegistry
	summarizer *summarize.Engine
	tracker    *usage.Tracker
	pipeline   *collab.Pipeline
	agents     *collab.ConfigTable
}

// New creates an Orchestrator from the given configuration.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tracker := usage.NewTracker(cfg.Store, cfg.Logger)
	agents := collab.NewConfigTable()
	return &Orchestrator{
		cfg:        cfg,
		store:      cfg.Store,
		client:     cfg.Client,
		estimator:  tokens.NewEstimator(nil),
		locks:      NewLockRegistry(),
		summarizer: summarize.NewEngine(cfg.Store, cfg.Client, tracker, cfg.SummarizerModel, cfg.SummarizeThreshold, cfg.Logger),
		tracker:    tracker,
		pipeline:   collab.NewPipeline(cfg.Client, agents, tracker, cfg.Logger),
		agents:     agents,
	}, nil
}

// ProcessUserMessage appends a user message, calls the model with a bounded
// context window, stores the reply, and returns it. Processing for a given
// thread is fully serialized; distinct threads proceed in parallel. A
// requested model, if valid, overrides the thread default; an invalid one
// fails with ErrInvalidModel rather than silently falling back.
func (o *Orchestrator) ProcessUserMessage(ctx context.Context, threadID, content, requestedModel string) (*Response, error) {
	const op = "process_user_message"

	if strings.TrimSpace(content) == "" {
		return nil, NewThreadErrorWithID(op, threadID, ErrEmptyContent)
	}

	release := o.locks.Acquire(threadID)
	defer release()

	thread, err := o.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, NewThreadErrorWithID(op, threadID, mapStorageErr(err))
	}

	model, err := o.resolveModel(thread, requestedModel)
	if err != nil {
		return nil, NewThreadErrorWithID(op, threadID, err).WithContext("requested_model", requestedModel)
	}

	if _, err := o.store.AppendMessage(ctx, &storage.Message{
		ThreadID: threadID,
		Role:     types.RoleUser,
		Content:  content,
	}); err != nil {
		return nil, NewThreadErrorWithID(op, threadID, fmt.Errorf("failed to append user message: %w", err))
	}
	if err := o.store.IncrementMessageCount(ctx, threadID); err != nil {
		return nil, NewThreadErrorWithID(op, threadID, mapStorageErr(err))
	}

	prompt, err := o.buildPrompt(ctx, thread, model)
	if err != nil {
		return nil, NewThreadErrorWithID(op, threadID, err)
	}

	result, err := o.client.Complete(ctx, gateway.Request{
		Model:    model,
		Messages: prompt,
	})
	if err != nil {
		return nil, NewThreadErrorWithID(op, threadID, err).WithContext("model", model)
	}

	// Accounting failures are logged by the tracker and never block the reply.
	_ = o.tracker.Track(ctx, usage.Event{
		ThreadID:      threadID,
		UserID:        thread.UserID,
		Model:         model,
		OperationType: storage.OperationMessage,
		Usage:         result.Usage,
	})

	assistantID, err := o.store.AppendMessage(ctx, &storage.Message{
		ThreadID: threadID,
		Role:     types.RoleAssistant,
		Content:  result.Content,
		Model:    model,
		Tokens:   result.Usage.CompletionTokens,
	})
	if err != nil {
		return nil, NewThreadErrorWithID(op, threadID, fmt.Errorf("failed to append assistant message: %w", err))
	}
	if err := o.store.IncrementMessageCount(ctx, threadID); err != nil {
		return nil, NewThreadErrorWithID(op, threadID, mapStorageErr(err))
	}

	// The user+assistant pair just landed; consult the scheduler against the
	// new count. The summary run is detached from this request.
	newCount := thread.MessageCount + 2
	if o.summarizer.ShouldTrigger(newCount) {
		o.summarizer.TriggerAsync(threadID, thread.UserID, types.TriggerMessageCount)
	}

	return &Response{
		MessageID: assistantID,
		ThreadID:  threadID,
		Role:      types.RoleAssistant,
		Content:   result.Content,
		Model:     result.Model,
		Tokens:    result.Usage.TotalTokens,
		Usage:     result.Usage,
	}, nil
}

// Collaborate runs the multi-agent pipeline over a single query. It does not
// touch thread state.
func (o *Orchestrator) Collaborate(ctx context.Context, req collab.Request) (*collab.Result, error) {
	return o.pipeline.Collaborate(ctx, req)
}

// CreateThread creates a new conversation thread.
func (o *Orchestrator) CreateThread(ctx context.Context, userID, title, systemPrompt, model string) (*storage.Thread, error) {
	const op = "create_thread"

	if model == "" {
		model = o.cfg.DefaultModel
	}
	if !registry.IsValid(model) {
		return nil, NewThreadError(op, ErrInvalidModel).WithContext("model", model)
	}

	threadID, err := o.store.CreateThread(ctx, &storage.Thread{
		UserID:       userID,
		Title:        title,
		SystemPrompt: systemPrompt,
		CurrentModel: model,
	})
	if err != nil {
		return nil, NewThreadError(op, err)
	}
	return o.store.GetThread(ctx, threadID)
}

// GetThread fetches a thread.
func (o *Orchestrator) GetThread(ctx context.Context, threadID string) (*storage.Thread, error) {
	thread, err := o.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, NewThreadErrorWithID("get_thread", threadID, mapStorageErr(err))
	}
	return thread, nil
}

// UpdateThread changes a thread's title and/or model. A non-nil model must
// be valid in the registry.
func (o *Orchestrator) UpdateThread(ctx context.Context, threadID string, update storage.ThreadUpdate) (*storage.Thread, error) {
	const op = "update_thread"

	if update.CurrentModel != nil && !registry.IsValid(*update.CurrentModel) {
		return nil, NewThreadErrorWithID(op, threadID, ErrInvalidModel).WithContext("model", *update.CurrentModel)
	}
	thread, err := o.store.UpdateThread(ctx, threadID, update)
	if err != nil {
		return nil, NewThreadErrorWithID(op, threadID, mapStorageErr(err))
	}
	return thread, nil
}

// ListThreads returns a user's threads with the total count.
func (o *Orchestrator) ListThreads(ctx context.Context, userID, status string, limit, offset int) ([]*storage.Thread, int, error) {
	return o.store.ListThreads(ctx, userID, status, limit, offset)
}

// ThreadMessages returns a page of a thread's history with the total count.
func (o *Orchestrator) ThreadMessages(ctx context.Context, threadID string, limit, offset int) ([]*storage.Message, int, error) {
	if _, err := o.store.GetThread(ctx, threadID); err != nil {
		return nil, 0, NewThreadErrorWithID("thread_messages", threadID, mapStorageErr(err))
	}
	return o.store.GetMessages(ctx, threadID, limit, offset)
}

// ThreadSummaries returns a thread's summaries, newest first.
func (o *Orchestrator) ThreadSummaries(ctx context.Context, threadID string, limit int) ([]*storage.Summary, error) {
	return o.store.ListSummaries(ctx, threadID, limit)
}

// ThreadUsage aggregates recent usage for a thread.
func (o *Orchestrator) ThreadUsage(ctx context.Context, threadID string, limit int) (*usage.ThreadTotals, error) {
	return o.tracker.Totals(ctx, threadID, limit)
}

// AgentConfigs returns the pipeline role bindings.
func (o *Orchestrator) AgentConfigs() []collab.AgentConfig {
	return o.agents.List()
}

// UpdateAgentModel rebinds a pipeline role to a new model.
func (o *Orchestrator) UpdateAgentModel(role, model string) (collab.AgentConfig, error) {
	return o.agents.UpdateModel(role, model)
}

// Summarize runs summarization for a thread synchronously, for manual
// triggers. It returns nil when the thread has no messages.
func (o *Orchestrator) Summarize(ctx context.Context, threadID string) (*storage.Summary, error) {
	thread, err := o.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, NewThreadErrorWithID("summarize", threadID, mapStorageErr(err))
	}
	return o.summarizer.Generate(ctx, threadID, thread.UserID, types.TriggerManual)
}

// Close waits for in-flight background summarizations to drain.
func (o *Orchestrator) Close() {
	o.summarizer.Wait()
}

// resolveModel applies the model selection precedence: explicit request
// first, then the thread default, then the configured default.
func (o *Orchestrator) resolveModel(thread *storage.Thread, requested string) (string, error) {
	if requested != "" {
		if !registry.IsValid(requested) {
			return "", ErrInvalidModel
		}
		return requested, nil
	}
	if thread.CurrentModel != "" {
		return thread.CurrentModel, nil
	}
	return o.cfg.DefaultModel, nil
}

func mapStorageErr(err error) error {
	if errors.Is(err, storage.ErrThreadNotFound) {
		return ErrThreadNotFound
	}
	return err
}
