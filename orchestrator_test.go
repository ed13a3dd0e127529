package threadloom

import (
	"context"
	"errors"
	"testing"

	"github.com/threadloom/threadloom/gateway"
	"github.com/threadloom/threadloom/storage"
	"github.com/threadloom/threadloom/types"
)

func TestProcessUserMessage(t *testing.T) {
	store := storage.NewMemory()
	client := &scriptedClient{replies: []string{"Hello back!"}}
	orch := newTestOrchestrator(t, store, client)
	threadID, _ := seedThread(t, store, 0)

	resp, err := orch.ProcessUserMessage(context.Background(), threadID, "Hello", "")
	if err != nil {
		t.Fatalf("ProcessUserMessage failed: %v", err)
	}

	if resp.Content != "Hello back!" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Role != types.RoleAssistant {
		t.Errorf("role = %q", resp.Role)
	}
	if resp.Model != "openai/gpt-4-turbo" {
		t.Errorf("model = %q, want thread default", resp.Model)
	}
	if resp.MessageID == "" {
		t.Error("missing assistant message id")
	}

	// Both messages stored, count incremented twice.
	messages, total, err := store.GetMessages(context.Background(), threadID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Fatalf("stored messages = %d, want 2", total)
	}
	if messages[0].Role != types.RoleUser || messages[0].Content != "Hello" {
		t.Errorf("user message = %+v", messages[0])
	}
	if messages[1].Role != types.RoleAssistant || messages[1].ID != resp.MessageID {
		t.Errorf("assistant message = %+v", messages[1])
	}

	thread, _ := store.GetThread(context.Background(), threadID)
	if thread.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", thread.MessageCount)
	}

	// The gateway saw the system prompt followed by the new user message.
	if len(client.calls) != 1 {
		t.Fatalf("gateway calls = %d, want 1", len(client.calls))
	}
	prompt := client.calls[0].Messages
	if len(prompt) != 2 || prompt[0].Role != types.RoleSystem || prompt[1].Content != "Hello" {
		t.Errorf("prompt = %+v", prompt)
	}

	// One usage record for the message path.
	records, err := store.ListUsage(context.Background(), threadID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].OperationType != storage.OperationMessage {
		t.Errorf("usage records = %+v", records)
	}
}

func TestProcessUserMessageModelPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		wantModel string
		wantErr   error
	}{
		{"thread default", "", "openai/gpt-4-turbo", nil},
		{"valid override", "anthropic/claude-3.5-sonnet", "anthropic/claude-3.5-sonnet", nil},
		{"invalid override fails, no fallback", "nope/unknown", "", ErrInvalidModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemory()
			client := &scriptedClient{}
			orch := newTestOrchestrator(t, store, client)
			threadID, _ := seedThread(t, store, 0)

			resp, err := orch.ProcessUserMessage(context.Background(), threadID, "Hi", tt.requested)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if len(client.calls) != 0 {
					t.Error("gateway called despite invalid model")
				}
				return
			}
			if err != nil {
				t.Fatalf("ProcessUserMessage failed: %v", err)
			}
			if client.calls[0].Model != tt.wantModel {
				t.Errorf("gateway model = %q, want %q", client.calls[0].Model, tt.wantModel)
			}
			if resp.Model != tt.wantModel {
				t.Errorf("response model = %q", resp.Model)
			}
		})
	}
}

func TestProcessUserMessageErrors(t *testing.T) {
	store := storage.NewMemory()
	orch := newTestOrchestrator(t, store, &scriptedClient{})

	if _, err := orch.ProcessUserMessage(context.Background(), "no-such-thread", "Hi", ""); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("missing thread error = %v, want ErrThreadNotFound", err)
	}

	threadID, _ := seedThread(t, store, 0)
	if _, err := orch.ProcessUserMessage(context.Background(), threadID, "   ", ""); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("empty content error = %v, want ErrEmptyContent", err)
	}

	var te *ThreadError
	_, err := orch.ProcessUserMessage(context.Background(), "no-such-thread", "Hi", "")
	if !errors.As(err, &te) {
		t.Fatalf("error is not a ThreadError: %v", err)
	}
	if te.ThreadID != "no-such-thread" {
		t.Errorf("ThreadError.ThreadID = %q", te.ThreadID)
	}
}

func TestProcessUserMessageTriggersSummarization(t *testing.T) {
	store := storage.NewMemory()
	// Reply 5 exchanges; calls 1-5 are chat replies, call 6 is the summary.
	client := &scriptedClient{}
	orch := newTestOrchestrator(t, store, client)
	threadID, _ := seedThread(t, store, 0)

	for i := 0; i < 5; i++ {
		if _, err := orch.ProcessUserMessage(context.Background(), threadID, "Tell me more", ""); err != nil {
			t.Fatalf("message %d failed: %v", i+1, err)
		}
	}
	orch.Close() // drain the background summarizer

	// message_count hit 10 exactly once, so exactly one summary exists.
	summaries, err := store.ListSummaries(context.Background(), threadID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	summary := summaries[0]
	if summary.TriggerReason != types.TriggerMessageCount {
		t.Errorf("trigger reason = %q", summary.TriggerReason)
	}
	if summary.CoveredMessageCount != 10 {
		t.Errorf("covered messages = %d, want 10", summary.CoveredMessageCount)
	}
	if len(summary.CoveredMessageIDs) != 10 {
		t.Errorf("covered ids = %d, want 10", len(summary.CoveredMessageIDs))
	}

	// 5 chat calls + 1 summarization call.
	if len(client.calls) != 6 {
		t.Errorf("gateway calls = %d, want 6", len(client.calls))
	}
}

func TestProcessUserMessageSummarizationFailureIsSwallowed(t *testing.T) {
	store := storage.NewMemory()
	client := &failAfterClient{failFrom: 6}
	orch := newTestOrchestrator(t, store, client)
	threadID, _ := seedThread(t, store, 0)

	for i := 0; i < 5; i++ {
		if _, err := orch.ProcessUserMessage(context.Background(), threadID, "Hi", ""); err != nil {
			t.Fatalf("message %d failed: %v", i+1, err)
		}
	}
	orch.Close()

	summaries, err := store.ListSummaries(context.Background(), threadID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 0 {
		t.Errorf("failed summarization left %d summaries", len(summaries))
	}
}

func TestCreateAndUpdateThread(t *testing.T) {
	store := storage.NewMemory()
	orch := newTestOrchestrator(t, store, &scriptedClient{})
	ctx := context.Background()

	thread, err := orch.CreateThread(ctx, "user-1", "My thread", "Be nice.", "")
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}
	if thread.CurrentModel != DefaultModel {
		t.Errorf("model = %q, want default", thread.CurrentModel)
	}
	if thread.Status != storage.ThreadStatusActive {
		t.Errorf("status = %q", thread.Status)
	}

	if _, err := orch.CreateThread(ctx, "user-1", "", "Be nice.", "nope/unknown"); !errors.Is(err, ErrInvalidModel) {
		t.Errorf("invalid model error = %v", err)
	}

	newModel := "anthropic/claude-3.5-sonnet"
	updated, err := orch.UpdateThread(ctx, thread.ID, storage.ThreadUpdate{CurrentModel: &newModel})
	if err != nil {
		t.Fatalf("UpdateThread failed: %v", err)
	}
	if updated.CurrentModel != newModel {
		t.Errorf("updated model = %q", updated.CurrentModel)
	}

	bad := "nope/unknown"
	if _, err := orch.UpdateThread(ctx, thread.ID, storage.ThreadUpdate{CurrentModel: &bad}); !errors.Is(err, ErrInvalidModel) {
		t.Errorf("invalid update error = %v", err)
	}

	threads, total, err := orch.ListThreads(ctx, "user-1", "", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(threads) != 1 {
		t.Errorf("threads = %d/%d, want 1/1", len(threads), total)
	}
}

// failAfterClient succeeds until call number failFrom, then always fails.
type failAfterClient struct {
	inner    scriptedClient
	failFrom int
}

func (f *failAfterClient) Complete(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
	if len(f.inner.calls)+1 >= f.failFrom {
		f.inner.calls = append(f.inner.calls, req)
		return nil, &gateway.UpstreamError{Status: 503, Detail: "model unavailable"}
	}
	return f.inner.Complete(ctx, req)
}
