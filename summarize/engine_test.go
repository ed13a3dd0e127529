package summarize

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/threadloom/threadloom/gateway"
	"github.com/threadloom/threadloom/storage"
	"github.com/threadloom/threadloom/types"
	"github.com/threadloom/threadloom/usage"
)

type stubClient struct {
	calls []gateway.Request
	err   error
}

func (s *stubClient) Complete(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return &gateway.Result{
		Content:      "A concise summary.",
		Model:        req.Model,
		Tokens:       25,
		FinishReason: "stop",
		Usage:        gateway.Usage{PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25},
	}, nil
}

func newTestEngine(store storage.Store, client gateway.Client) *Engine {
	tracker := usage.NewTracker(store, nil)
	return NewEngine(store, client, tracker, "openai/gpt-3.5-turbo", 10, nil)
}

func TestShouldTrigger(t *testing.T) {
	engine := newTestEngine(storage.NewMemory(), &stubClient{})

	tests := []struct {
		count int
		want  bool
	}{
		{0, false},
		{1, false},
		{9, false},
		{10, true},
		{11, false},
		{15, false},
		{19, false},
		{20, true},
		{30, true},
	}

	for _, tt := range tests {
		if got := engine.ShouldTrigger(tt.count); got != tt.want {
			t.Errorf("ShouldTrigger(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func seedMessages(t *testing.T, store storage.Store, count int) string {
	t.Helper()
	ctx := context.Background()

	threadID, err := store.CreateThread(ctx, &storage.Thread{
		UserID:       "user-1",
		SystemPrompt: "Be helpful.",
		CurrentModel: "openai/gpt-4-turbo",
	})
	if err != nil {
		t.Fatal(err)
	}
	base := time.Now().Add(-time.Hour).UTC()
	for i := 0; i < count; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		_, err := store.AppendMessage(ctx, &storage.Message{
			ThreadID:  threadID,
			Role:      role,
			Content:   fmt.Sprintf("message %d", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return threadID
}

func TestGenerate(t *testing.T) {
	store := storage.NewMemory()
	client := &stubClient{}
	engine := newTestEngine(store, client)
	threadID := seedMessages(t, store, 14)

	summary, err := engine.Generate(context.Background(), threadID, "user-1", types.TriggerMessageCount)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if summary.SummaryText != "A concise summary." {
		t.Errorf("summary text = %q", summary.SummaryText)
	}
	if summary.CoveredMessageCount != 10 {
		t.Errorf("covered = %d, want the 10 most recent", summary.CoveredMessageCount)
	}
	if summary.TriggerReason != types.TriggerMessageCount {
		t.Errorf("trigger = %q", summary.TriggerReason)
	}
	if summary.ID == "" {
		t.Error("summary not persisted with an id")
	}

	// The prompt renders the covered messages oldest-first as role-labelled
	// lines; message 5 precedes the covered span and must not appear.
	if len(client.calls) != 1 {
		t.Fatalf("gateway calls = %d", len(client.calls))
	}
	req := client.calls[0]
	if req.Model != "openai/gpt-3.5-turbo" {
		t.Errorf("model = %q, want the dedicated summarizer model", req.Model)
	}
	if req.Temperature != summaryTemperature || req.MaxTokens != summaryMaxTokens {
		t.Errorf("call params = (%v, %d)", req.Temperature, req.MaxTokens)
	}
	prompt := req.Messages[0].Content
	if !strings.Contains(prompt, "User: message 5") {
		t.Errorf("prompt missing oldest covered message:\n%s", prompt)
	}
	if strings.Contains(prompt, "Assistant: message 4") {
		t.Error("prompt includes a message outside the covered span")
	}
	if strings.Index(prompt, "message 5") > strings.Index(prompt, "message 14") {
		t.Error("covered messages not rendered oldest-first")
	}

	// Usage recorded as a summarization operation.
	records, err := store.ListUsage(context.Background(), threadID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].OperationType != storage.OperationSummarization {
		t.Errorf("usage records = %+v", records)
	}

	latest, err := store.GetLatestSummary(context.Background(), threadID)
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != summary.ID {
		t.Errorf("latest summary = %+v", latest)
	}
}

func TestGenerateEmptyThread(t *testing.T) {
	store := storage.NewMemory()
	engine := newTestEngine(store, &stubClient{})
	threadID := seedMessages(t, store, 0)

	summary, err := engine.Generate(context.Background(), threadID, "user-1", types.TriggerManual)
	if err != nil {
		t.Fatalf("Generate on empty thread errored: %v", err)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil for empty thread", summary)
	}
}

func TestTriggerAsyncSwallowsFailures(t *testing.T) {
	store := storage.NewMemory()
	client := &stubClient{err: &gateway.UpstreamError{Status: 503, Detail: "down"}}
	engine := newTestEngine(store, client)
	threadID := seedMessages(t, store, 10)

	engine.TriggerAsync(threadID, "user-1", types.TriggerMessageCount)
	engine.Wait()

	summaries, err := store.ListSummaries(context.Background(), threadID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 0 {
		t.Errorf("failed run persisted %d summaries", len(summaries))
	}
}

func TestTruncateLongMessagesInPrompt(t *testing.T) {
	store := storage.NewMemory()
	client := &stubClient{}
	engine := newTestEngine(store, client)

	threadID, err := store.CreateThread(context.Background(), &storage.Thread{
		UserID:       "user-1",
		SystemPrompt: "Be helpful.",
		CurrentModel: "openai/gpt-4-turbo",
	})
	if err != nil {
		t.Fatal(err)
	}
	long := strings.Repeat("x", 2000)
	if _, err := store.AppendMessage(context.Background(), &storage.Message{
		ThreadID: threadID,
		Role:     types.RoleUser,
		Content:  long,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.Generate(context.Background(), threadID, "user-1", types.TriggerManual); err != nil {
		t.Fatal(err)
	}
	prompt := client.calls[0].Messages[0].Content
	if strings.Contains(prompt, long) {
		t.Error("prompt embeds the full long message; it must be truncated")
	}
	if !strings.Contains(prompt, long[:renderLimit]+"...") {
		t.Error("prompt missing the truncated message head")
	}
}
